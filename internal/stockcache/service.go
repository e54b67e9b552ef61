// Package stockcache keeps the Redis aggregate-availability cache in step
// with the batch ledger by consuming stock-changed events.
package stockcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/medstok/go-pharmacy-orders/internal/kafka"
	"github.com/medstok/go-pharmacy-orders/internal/ledger"
	"github.com/medstok/go-pharmacy-orders/internal/orders"
	"github.com/medstok/go-pharmacy-orders/internal/redisx"
)

type Service struct {
	Ledger      ledger.Store
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

// HandleStockChanged is the consumer handler. The event only names the
// affected pharmacy/medicine; the ledger is re-queried for the committed
// aggregate, so replays and reorderings converge on the right value.
func (s *Service) HandleStockChanged(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventStockChanged {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.StockChangedPayload](env.Payload)
	if err != nil {
		return err
	}

	available, err := s.Ledger.AggregateAvailable(ctx, p.MedicineID, p.PharmacyID)
	if err != nil {
		return err
	}

	key := fmt.Sprintf(redisx.KeyStockAgg, p.PharmacyID, p.MedicineID)
	if err := s.Redis.Set(ctx, key, strconv.FormatInt(available, 10), redisx.TTLStockAgg).Err(); err != nil {
		return err
	}
	// the per-pharmacy rollup is rebuilt lazily on the next read
	_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyInventory, p.PharmacyID)).Err()

	s.Log.Debug("stock aggregate refreshed",
		zap.String("pharmacy_id", p.PharmacyID),
		zap.String("medicine_id", p.MedicineID),
		zap.Int64("available", available))
	return nil
}
