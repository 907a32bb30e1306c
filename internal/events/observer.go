// internal/events/observer.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Observer receives campaign progress. Implementations must not block.
type Observer interface {
	OnProgress(current, total int, wallet solana.PublicKey, phase Phase)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(current, total int, wallet solana.PublicKey, phase Phase)

func (f ObserverFunc) OnProgress(current, total int, wallet solana.PublicKey, phase Phase) {
	f(current, total, wallet, phase)
}

// Nop returns an observer that ignores progress.
func Nop() Observer {
	return ObserverFunc(func(int, int, solana.PublicKey, Phase) {})
}

// LogObserver writes progress to a zap logger.
type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger.Named("progress")}
}

func (o *LogObserver) OnProgress(current, total int, wallet solana.PublicKey, phase Phase) {
	o.logger.Info("Campaign progress",
		zap.String("phase", string(phase)),
		zap.Int("current", current),
		zap.Int("total", total),
		zap.String("wallet", wallet.String()))
}

// BusObserver publishes progress as ProgressEvent on a bus.
type BusObserver struct {
	bus        *Bus
	campaignID string
	now        func() time.Time
}

func NewBusObserver(bus *Bus, campaignID string) *BusObserver {
	return &BusObserver{bus: bus, campaignID: campaignID, now: time.Now}
}

func (o *BusObserver) OnProgress(current, total int, wallet solana.PublicKey, phase Phase) {
	_ = o.bus.Publish(ProgressEvent{
		BaseEvent: BaseEvent{EventType: CampaignProgress, EventTime: o.now(), CampaignID: o.campaignID},
		Current:   current,
		Total:     total,
		Wallet:    wallet,
		Phase:     phase,
	})
}

// Multi fans progress out to several observers in order.
func Multi(observers ...Observer) Observer {
	return ObserverFunc(func(current, total int, wallet solana.PublicKey, phase Phase) {
		for _, o := range observers {
			if o != nil {
				o.OnProgress(current, total, wallet, phase)
			}
		}
	})
}
