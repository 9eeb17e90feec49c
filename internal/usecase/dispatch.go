package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teknolab/repute/internal/domain"
)

// ContentEvent is the notification an external collaborator delivers when
// a domain object changed. The core never inspects the object itself; the
// event carries everything a handler may need.
type ContentEvent struct {
	ContentType     string `json:"contentType"`
	ObjectID        string `json:"objectID"`
	Created         bool   `json:"created"`
	TargetUser      string `json:"targetUser"`
	OriginatingUser string `json:"originatingUser"`
	Value           *int   `json:"value,omitempty"`
}

// ContentHandler decides whether and how a content event becomes a ledger
// entry. One handler is registered per content type.
type ContentHandler interface {
	ShouldFire(event ContentEvent) bool
	TargetUser(event ContentEvent) string
	OriginatingUser(event ContentEvent) string
	Object(event ContentEvent) domain.ObjectRef
	// Value returns nil to use the action kind's configured point value.
	Value(event ContentEvent) *int
}

type dispatchRule struct {
	kind    string
	handler ContentHandler
}

// Dispatcher routes content events to the ledger through statically
// registered handlers. It is constructed once at startup and passed by
// reference; there is no ambient registry.
type Dispatcher struct {
	ledger   *LedgerUsecase
	handlers map[string]dispatchRule
}

func NewDispatcher(ledger *LedgerUsecase) *Dispatcher {
	return &Dispatcher{
		ledger:   ledger,
		handlers: make(map[string]dispatchRule),
	}
}

// Register binds a handler and an action kind to a content type. The kind
// must exist in the catalog and a content type can be bound only once.
func (d *Dispatcher) Register(contentType, kindID string, handler ContentHandler) error {
	if _, err := d.ledger.catalog.Resolve(kindID); err != nil {
		return err
	}
	if _, ok := d.handlers[contentType]; ok {
		return fmt.Errorf("content type %q already registered", contentType)
	}
	d.handlers[contentType] = dispatchRule{kind: kindID, handler: handler}
	return nil
}

// Dispatch translates event into a Record call. Events for unregistered
// content types, and events the handler declines, are dropped without
// error; the caller sees a nil entry.
func (d *Dispatcher) Dispatch(ctx context.Context, event ContentEvent) (*domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Dispatch.Dispatch")
	defer span.End()

	rule, ok := d.handlers[event.ContentType]
	if !ok {
		slog.DebugContext(ctx, "no handler for content type, event dropped",
			slog.String("contentType", event.ContentType),
			slog.String("module", "dispatch"),
		)
		return nil, nil
	}

	if !rule.handler.ShouldFire(event) {
		return nil, nil
	}

	entry, err := d.ledger.Record(ctx, RecordInput{
		Actor:  rule.handler.OriginatingUser(event),
		Target: rule.handler.TargetUser(event),
		Kind:   rule.kind,
		Object: rule.handler.Object(event),
		Value:  rule.handler.Value(event),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &entry, nil
}

// RuleHandler is the table-driven default handler: it fires on creation
// events that name a target user and forwards the event's fields verbatim.
type RuleHandler struct{}

func (RuleHandler) ShouldFire(event ContentEvent) bool {
	return event.Created && event.TargetUser != ""
}

func (RuleHandler) TargetUser(event ContentEvent) string      { return event.TargetUser }
func (RuleHandler) OriginatingUser(event ContentEvent) string { return event.OriginatingUser }

func (RuleHandler) Object(event ContentEvent) domain.ObjectRef {
	return domain.ObjectRef{Type: event.ContentType, ID: event.ObjectID}
}

func (RuleHandler) Value(event ContentEvent) *int { return event.Value }
