package allocation

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/vsinha/lotalloc/pkg/application/dto"
	"github.com/vsinha/lotalloc/pkg/domain/entities"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	n.Notify(context.Background(), Notification{
		OrderLineID: "L1",
		Severity:    SeverityError,
		Message:     "warehouse system unavailable",
		Err:         errors.New("503"),
	})

	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"order_line":"L1"`)
	assert.Contains(t, out, `"error":"503"`)
	assert.Contains(t, out, "warehouse system unavailable")
}

func TestNotifierFunc(t *testing.T) {
	var got Notification
	var n Notifier = NotifierFunc(func(_ context.Context, note Notification) { got = note })

	n.Notify(context.Background(), Notification{OrderLineID: "L2", Severity: SeverityWarning})
	assert.Equal(t, entities.OrderLineID("L2"), got.OrderLineID)
	assert.Equal(t, "warning", got.Severity.String())
}

func TestReconciler_Apply(t *testing.T) {
	r := NewReconciler(Deps{Logger: zerolog.Nop()}, DefaultConfig())
	current := dto.LineSummary{
		OrderLineID: "L1",
		Required:    dec("100"),
		Committed:   dec("60"),
		Draft:       dec("40"),
		Remaining:   dec("0"),
		Status:      entities.LineDraft,
		Reservation: entities.ReservationHard,
	}

	committed := r.Apply(current, Speculation{CommittedDelta: dec("40"), ClearDraft: true})
	assert.True(t, dec("100").Equal(committed.Committed))
	assert.True(t, committed.Draft.IsZero())
	assert.Equal(t, entities.LineCommitted, committed.Status)
	assert.False(t, committed.OverAllocated)

	records := []entities.Reservation{{ID: "R1", Kind: entities.HardReservation, Status: entities.ReservationCancelled}}
	cancelled := r.Apply(current, Speculation{CommittedDelta: dec("-60"), Records: records})
	assert.True(t, cancelled.Committed.IsZero())
	assert.True(t, dec("60").Equal(cancelled.Remaining))
	assert.Equal(t, entities.ReservationNone, cancelled.Reservation)
	assert.Equal(t, entities.LineDraft, cancelled.Status)
}
