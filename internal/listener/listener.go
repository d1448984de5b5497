package listener

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"homepage-aggregator/internal/storage"
)

// Refresher reloads state after a change notification.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ListenAndRefresh keeps ref in sync with section writes from any instance.
// It reconnects with jittered backoff until ctx is done.
func ListenAndRefresh(ctx context.Context, st *storage.Store, ref Refresher, channel string, baseBackoff time.Duration) {
	if channel == "" {
		channel = st.ListenChannel()
	}
	for {
		err := listen(ctx, st, ref, channel)
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Dur("retry_in", backoff).Msg("listener disconnected")
		select {
		case <-ctx.Done():
			log.Info().Msg("listener stopped")
			return
		case <-time.After(backoff):
		}
	}
}

func listen(ctx context.Context, st *storage.Store, ref Refresher, channel string) error {
	conn, err := st.PgxPool().Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("listening for section changes")

	// catch up on anything written while disconnected
	if err := ref.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("refresh fallback snapshot")
	}

	var lastRefresh time.Time
	for {
		ntf, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if time.Since(lastRefresh) < 200*time.Millisecond {
			continue // debounce burst of notifications
		}
		lastRefresh = time.Now()
		log.Info().Str("channel", ntf.Channel).Str("section", ntf.Payload).Msg("section changed; refreshing snapshot")
		if err := ref.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("refresh fallback snapshot")
		}
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
