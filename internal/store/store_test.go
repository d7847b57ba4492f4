package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/talentpipe/inboxsync/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (journal + conversations)", result.Version)
	}
	if result.Dirty {
		t.Error("schema left dirty")
	}
}

func TestMigrateRefusesDirtySchema(t *testing.T) {
	db := testDB(t)
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatal(err)
	}
	result, err := db.Migrate()
	if !errors.Is(err, ErrDirtySchema) {
		t.Fatalf("Migrate() error = %v, want ErrDirtySchema", err)
	}
	if result == nil || !result.Dirty || result.Version != 2 {
		t.Errorf("result = %+v, want dirty at version 2", result)
	}
}

func TestOpenMigrated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := OpenMigrated(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if err := db.SetState("k", "v"); err != nil {
		t.Fatalf("schema missing after OpenMigrated: %v", err)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox(OutboxEntry{ClientID: "tmp-1", Phone: "5511999990000", Body: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox(OutboxEntry{ClientID: "tmp-2", Phone: "5511999990000", Body: "again"}); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ClientID != "tmp-1" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := db.MarkOutboxSent("tmp-1", "srv-9"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxFailed("tmp-2", "backend 502"); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetOutbox("tmp-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != OutboxSent || got.ServerID != "srv-9" {
		t.Errorf("tmp-1 = %+v", got)
	}

	failed, err := db.FailedOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].ErrorMessage != "backend 502" {
		t.Fatalf("failed = %+v", failed)
	}

	if err := db.MarkOutboxResent("tmp-2", "tmp-3"); err != nil {
		t.Fatal(err)
	}
	failed, _ = db.FailedOutbox()
	if len(failed) != 0 {
		t.Errorf("resent entry still listed as failed: %+v", failed)
	}
}

func TestOutboxTemplateVars(t *testing.T) {
	db := testDB(t)

	e := OutboxEntry{
		ClientID:     "tmp-t",
		Phone:        "5511999990000",
		Body:         "Hello Ana",
		TemplateID:   "tpl-1",
		TemplateVars: map[string]string{"nome": "Ana"},
	}
	if err := db.QueueOutbox(e); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetOutbox("tmp-t")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsTemplate() || got.TemplateVars["nome"] != "Ana" {
		t.Errorf("got %+v", got)
	}
}

func TestOutboxMissing(t *testing.T) {
	db := testDB(t)

	if _, err := db.GetOutbox("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOutbox err = %v, want ErrNotFound", err)
	}
	if err := db.MarkOutboxSent("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkOutboxSent err = %v, want ErrNotFound", err)
	}
}

func TestAbandonQueued(t *testing.T) {
	db := testDB(t)

	_ = db.QueueOutbox(OutboxEntry{ClientID: "a", Phone: "1", Body: "x"})
	_ = db.QueueOutbox(OutboxEntry{ClientID: "b", Phone: "1", Body: "y"})
	_ = db.MarkOutboxSent("b", "srv")

	n, err := db.AbandonQueued("daemon restarted")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("abandoned %d, want 1", n)
	}
	got, _ := db.GetOutbox("a")
	if got.Status != OutboxFailed || got.ErrorMessage != "daemon restarted" {
		t.Errorf("a = %+v", got)
	}
}

func TestState(t *testing.T) {
	db := testDB(t)

	v, err := db.GetState(KeyLastPhone)
	if err != nil || v != "" {
		t.Fatalf("unset key = %q, %v", v, err)
	}
	if err := db.SetState(KeyLastPhone, "5511999990000"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetState(KeyLastPhone, "5511888880000"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetState(KeyLastPhone); v != "5511888880000" {
		t.Errorf("GetState = %q", v)
	}
	if err := db.SetState(KeyLastPhone, ""); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetState(KeyLastPhone); v != "" {
		t.Errorf("cleared key = %q", v)
	}
}

func TestConversationCacheKeepsOrder(t *testing.T) {
	db := testDB(t)

	at := time.UnixMilli(1_700_000_000_000)
	list := []model.Conversation{
		{Phone: "2", Name: "Bruno", LastMessage: "oi", LastMessageAt: at, MessageCount: 3, ContactID: "7", Known: true},
		{Phone: "1", Name: "Ana"},
	}
	if err := db.SaveConversations(list); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadConversations()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Phone != "2" || got[1].Phone != "1" {
		t.Fatalf("order = %+v", got)
	}
	if !got[0].LastMessageAt.Equal(at) || !got[0].Known || got[0].ContactID != "7" {
		t.Errorf("first = %+v", got[0])
	}
	if !got[1].LastMessageAt.IsZero() {
		t.Errorf("zero time not preserved: %v", got[1].LastMessageAt)
	}

	if err := db.SaveConversations(list[1:]); err != nil {
		t.Fatal(err)
	}
	got, _ = db.LoadConversations()
	if len(got) != 1 {
		t.Errorf("replace left %d rows", len(got))
	}
}
