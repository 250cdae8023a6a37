package intermediary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/guttosm/offline-cache/internal/domain/dto"
	"github.com/guttosm/offline-cache/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Message types accepted by HandleMessage.
const (
	MessageSkipWaiting  = "SKIP_WAITING"
	MessageCleanCache   = "CLEAN_CACHE"
	MessageGetCacheSize = "GET_CACHE_SIZE"
)

// ErrUnknownMessage is returned for a message type outside the accepted set.
var ErrUnknownMessage = errors.New("intermediary: unknown message type")

// Message is a command sent by the page.
type Message struct {
	Type string `json:"type" binding:"required"`
}

// Reply answers a Message. Only the fields relevant to the message type are set.
type Reply struct {
	Success *bool  `json:"success,omitempty"`
	Size    *int64 `json:"size,omitempty"`
}

// HandleMessage executes a page command.
func (i *Intermediary) HandleMessage(ctx context.Context, msg Message) (Reply, error) {
	switch msg.Type {
	case MessageSkipWaiting:
		err := i.SkipWaiting(ctx)
		if err != nil && !errors.Is(err, ErrNotWaiting) {
			return Reply{}, err
		}
		ok := err == nil
		return Reply{Success: &ok}, nil

	case MessageCleanCache:
		count, err := i.deleteStalePartitions(ctx)
		if err != nil {
			return Reply{}, fmt.Errorf("clean cache: %w", err)
		}
		log.Info().Int("items", count.Items).Int64("bytes", count.Bytes).Msg("Old partitions cleaned on request")
		ok := true
		return Reply{Success: &ok}, nil

	case MessageGetCacheSize:
		size, err := i.CacheSize(ctx)
		if err != nil {
			return Reply{}, fmt.Errorf("cache size: %w", err)
		}
		return Reply{Size: &size}, nil

	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

func recordIntercept(category, outcome string) {
	metrics.RecordInterceptedRequest(category, outcome)
}

// writeUnavailable answers an API request that neither the network nor the cache could serve.
func writeUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := json.NewEncoder(w).Encode(dto.NewOfflineError()); err != nil {
		log.Debug().Err(err).Msg("Client went away while writing offline response")
	}
}
