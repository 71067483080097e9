package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/cuemby/etlconsole/pkg/events"
	"github.com/cuemby/etlconsole/pkg/log"
	"github.com/cuemby/etlconsole/pkg/metrics"
	"github.com/cuemby/etlconsole/pkg/readiness"
	"github.com/cuemby/etlconsole/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LoadingMessage is shown while the backend warms up
const LoadingMessage = "Loading query engine..."

// ErrNotReady is returned when a question is asked before the backend is ready
var ErrNotReady = errors.New("query engine is not ready")

// Asker answers natural-language questions
type Asker interface {
	Ask(ctx context.Context, question string) (*types.AskResult, error)
}

// Card is the response placeholder added for each question
type Card interface {
	Render(result *types.AskResult)
	RenderError(err error)
}

// View is the chat transcript
type View interface {
	ShowLoading(msg string)
	ShowBlocked(msg string)
	ShowReady()
	AddUserBubble(text string)
	AddBotSkeleton() Card
	ClearTranscript()
}

// Controller sends questions to the backend and renders the answers
type Controller struct {
	asker  Asker
	view   View
	poller *readiness.Poller
	broker *events.Broker
	logger zerolog.Logger
}

// NewController creates a chat controller gated on poller. broker may be nil.
func NewController(asker Asker, view View, poller *readiness.Poller, broker *events.Broker) *Controller {
	return &Controller{
		asker:  asker,
		view:   view,
		poller: poller,
		broker: broker,
		logger: log.WithComponent("chat"),
	}
}

// WarmUp polls readiness and reveals the chat once the backend is ready.
// When the backend has no data the static blocked message is shown and
// readiness.ErrBlocked is returned.
func (c *Controller) WarmUp(ctx context.Context) error {
	c.view.ShowLoading(LoadingMessage)

	err := c.poller.Run(ctx)
	switch {
	case err == nil:
		c.view.ShowReady()
		c.broker.Publish(&events.Event{Type: events.EventReadinessReady})
	case errors.Is(err, readiness.ErrBlocked):
		c.view.ShowBlocked(readiness.BlockedMessage)
		c.broker.Publish(&events.Event{Type: events.EventReadinessBlocked, Message: readiness.BlockedMessage})
	}
	return err
}

// Ask submits question. Blank questions are ignored and return nil, nil.
// Any failure is rendered in place of the answer card and returned.
func (c *Controller) Ask(ctx context.Context, question string) (*types.AskResult, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return nil, nil
	}
	if c.poller.State() != types.ReadinessReady {
		return nil, ErrNotReady
	}

	c.view.AddUserBubble(q)
	card := c.view.AddBotSkeleton()
	queryID := uuid.New().String()

	result, err := c.asker.Ask(ctx, q)
	if err != nil {
		card.RenderError(err)
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("query_id", queryID).Msg("query failed")
		c.broker.Publish(&events.Event{
			Type:     events.EventQueryFailed,
			Message:  err.Error(),
			Metadata: map[string]string{"query_id": queryID, "question": q},
		})
		return nil, err
	}

	card.Render(result)
	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	c.logger.Debug().Str("query_id", queryID).Msg("query answered")
	c.broker.Publish(&events.Event{
		Type: events.EventQueryAnswered,
		Metadata: map[string]string{
			"query_id": queryID,
			"question": q,
			"sql":      result.SQL,
			"excel":    result.ExcelURL,
		},
	})
	return result, nil
}

// Reset starts a new report by clearing the transcript
func (c *Controller) Reset() {
	c.view.ClearTranscript()
}
