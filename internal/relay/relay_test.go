package relay

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/kv"
	"github.com/GriffinCanCode/lingualens/platform/internal/syncx"
)

func fixedSequencer(ms int64) *syncx.Sequencer {
	return syncx.NewSequencer(func() time.Time { return time.UnixMilli(ms) })
}

func TestPublishTextThenLoadLatest(t *testing.T) {
	ctx := context.Background()
	hub := kv.Memory()
	pub := NewPublisher(hub.Connect("control"), fixedSequencer(100))

	first, err := pub.PublishText(ctx, "Xin chào")
	if err != nil {
		t.Fatalf("PublishText: %v", err)
	}
	second, _ := pub.PublishText(ctx, "Thế giới")
	if second.Sequence != first.Sequence+1 {
		t.Errorf("sequences = %d, %d; want consecutive", first.Sequence, second.Sequence)
	}

	var got Message
	found, err := LoadLatest(ctx, hub.Connect("display"), TranslationKey, &got)
	if err != nil || !found {
		t.Fatalf("LoadLatest = (%v, %v)", found, err)
	}
	if got != second {
		t.Errorf("latest = %+v, want %+v", got, second)
	}
}

func TestLoadLatestMissingAndMalformed(t *testing.T) {
	ctx := context.Background()
	c := kv.Memory().Connect("display")

	var m Message
	if found, err := LoadLatest(ctx, c, TranslationKey, &m); found || err != nil {
		t.Errorf("missing key = (%v, %v), want (false, nil)", found, err)
	}

	_ = c.Set(ctx, SettingsKey, "{oops")
	var v map[string]any
	found, err := LoadLatest(ctx, c, SettingsKey, &v)
	if found || !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Errorf("malformed = (%v, %v), want InvalidArgument", found, err)
	}
}

func TestGateOutOfOrder(t *testing.T) {
	var g Gate
	var applied []int64
	for _, seq := range []int64{3, 1, 2} {
		if g.Admit(seq) {
			applied = append(applied, seq)
		}
	}
	if len(applied) != 1 || applied[0] != 3 {
		t.Errorf("applied = %v, want [3]", applied)
	}
}

func TestGateRejectsDuplicate(t *testing.T) {
	var g Gate
	if !g.Admit(0) {
		t.Error("first sequence should be admitted even when zero")
	}
	if g.Admit(0) {
		t.Error("duplicate sequence admitted")
	}
	if !g.Admit(1) {
		t.Error("newer sequence rejected")
	}
	if last, ok := g.Last(); !ok || last != 1 {
		t.Errorf("Last = (%d, %v), want (1, true)", last, ok)
	}
}
