package conversation

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ringdesk/ringdesk/internal/database/models"
)

// fakeConversationRepo is an in-memory ConversationRepository.
type fakeConversationRepo struct {
	rows map[string]*models.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{rows: make(map[string]*models.Conversation)}
}

func (f *fakeConversationRepo) Create(_ context.Context, c *models.Conversation) error {
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConversationRepo) FindLatestByParties(_ context.Context, callerPhone, linePhone string, phoneLineID int64) (*models.Conversation, error) {
	for _, c := range f.rows {
		if c.CallerPhone == callerPhone && c.LinePhone == linePhone && c.PhoneLineID == phoneLineID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeConversationRepo) Update(_ context.Context, c *models.Conversation) error {
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func testSyncer(repo *fakeConversationRepo) *Syncer {
	return NewSyncer(repo, slog.New(slog.DiscardHandler))
}

func TestUpsertCreatesWithPlaceholder(t *testing.T) {
	repo := newFakeConversationRepo()
	s := testSyncer(repo)

	id, err := s.Upsert(context.Background(), UpsertParams{
		TenantID:     "acme",
		CallerPhone:  "+19185551234",
		LinePhone:    "+19185550000",
		PhoneLineID:  1,
		RecordingURL: "https://provider.example/rec/RE1",
		DurationSecs: 8,
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if id == "" {
		t.Fatal("Upsert() returned empty conversation id")
	}

	c := repo.rows[id]
	if c == nil {
		t.Fatal("conversation not stored")
	}
	if c.Transcription != PlaceholderTranscription {
		t.Errorf("Transcription = %q, want placeholder", c.Transcription)
	}
	if c.DurationSecs != 8 {
		t.Errorf("DurationSecs = %d, want 8", c.DurationSecs)
	}
}

func TestUpsertIdempotentPerParties(t *testing.T) {
	repo := newFakeConversationRepo()
	s := testSyncer(repo)
	ctx := context.Background()

	params := UpsertParams{
		TenantID:    "acme",
		CallerPhone: "+19185551234",
		LinePhone:   "+19185550000",
		PhoneLineID: 1,
	}

	firstID, err := s.Upsert(ctx, params)
	if err != nil {
		t.Fatalf("first Upsert() error: %v", err)
	}

	// Second write carries the transcription; it must land on the same
	// entry, with the later text winning.
	params.Transcription = "Please call me back about the leak."
	secondID, err := s.Upsert(ctx, params)
	if err != nil {
		t.Fatalf("second Upsert() error: %v", err)
	}

	if firstID != secondID {
		t.Fatalf("second upsert created a new conversation: %s != %s", firstID, secondID)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("store has %d conversations, want 1", len(repo.rows))
	}
	if got := repo.rows[firstID].Transcription; got != "Please call me back about the leak." {
		t.Errorf("Transcription = %q, want second call's text", got)
	}
}

func TestUpsertKeepsExistingFactsWhenAbsent(t *testing.T) {
	repo := newFakeConversationRepo()
	s := testSyncer(repo)
	ctx := context.Background()

	id, err := s.Upsert(ctx, UpsertParams{
		TenantID:      "acme",
		CallerPhone:   "+19185551234",
		LinePhone:     "+19185550000",
		PhoneLineID:   1,
		Transcription: "first text",
		RecordingURL:  "https://provider.example/rec/RE1",
		DurationSecs:  30,
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	// A later callback without transcription or URL must not blank them.
	if _, err := s.Upsert(ctx, UpsertParams{
		TenantID:    "acme",
		CallerPhone: "+19185551234",
		LinePhone:   "+19185550000",
		PhoneLineID: 1,
	}); err != nil {
		t.Fatalf("second Upsert() error: %v", err)
	}

	c := repo.rows[id]
	if c.Transcription != "first text" {
		t.Errorf("Transcription = %q, want preserved text", c.Transcription)
	}
	if c.RecordingURL == "" {
		t.Error("RecordingURL was blanked by the second upsert")
	}
	if c.DurationSecs != 30 {
		t.Errorf("DurationSecs = %d, want preserved 30", c.DurationSecs)
	}
}

func TestSetRecordingPath(t *testing.T) {
	repo := newFakeConversationRepo()
	s := testSyncer(repo)
	ctx := context.Background()

	id, err := s.Upsert(ctx, UpsertParams{
		TenantID:    "acme",
		CallerPhone: "+19185551234",
		LinePhone:   "+19185550000",
		PhoneLineID: 1,
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	if err := s.SetRecordingPath(ctx, id, "/data/recordings/x.wav"); err != nil {
		t.Fatalf("SetRecordingPath() error: %v", err)
	}
	if repo.rows[id].RecordingPath != "/data/recordings/x.wav" {
		t.Errorf("RecordingPath = %q", repo.rows[id].RecordingPath)
	}

	if err := s.SetRecordingPath(ctx, "missing", "/x.wav"); err == nil {
		t.Error("SetRecordingPath() on missing conversation should error")
	}
}
