package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
)

// readSignals decodes a stream of JSON signals into out until the stream ends or ctx is done.
// Signals without a timeframe get the default one. out is closed on return.
func readSignals(ctx context.Context, r io.Reader, defaultTimeframe string, out chan<- types.Signal) error {
	defer close(out)

	decoder := json.NewDecoder(r)

	for {
		var signal types.Signal

		err := decoder.Decode(&signal)
		if err == io.EOF {
			return nil
		}

		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidSignal, "failed to decode signal", err)
		}

		if signal.Timeframe == "" {
			signal.Timeframe = defaultTimeframe
		}

		select {
		case <-ctx.Done():
			return nil
		case out <- signal:
		}
	}
}
