package store

import (
	"context"
	"testing"

	"github.com/KareemA-Saad/Meem-Market/internal/db"
)

func TestSetAndGetOption(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, ok, err := GetOption(ctx, database, "blogname"); err != nil || ok {
		t.Fatalf("expected missing option, got ok=%v err=%v", ok, err)
	}

	if err := SetOption(ctx, database, "blogname", "Meem", true); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if err := SetOption(ctx, database, "blogname", "Meem Market", true); err != nil {
		t.Fatalf("SetOption overwrite: %v", err)
	}

	value, ok, err := GetOption(ctx, database, "blogname")
	if err != nil {
		t.Fatalf("GetOption: %v", err)
	}
	if !ok || value != "Meem Market" {
		t.Errorf("expected 'Meem Market', got %q (ok=%v)", value, ok)
	}
}

func TestAddOptionKeepsExisting(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	SetOption(ctx, database, "default_role", "editor", true)
	if err := AddOption(ctx, database, "default_role", "subscriber", true); err != nil {
		t.Fatalf("AddOption: %v", err)
	}

	value, _, _ := GetOption(ctx, database, "default_role")
	if value != "editor" {
		t.Errorf("expected existing value 'editor', got %q", value)
	}
}

func TestLoadAutoloadOptions(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	SetOption(ctx, database, "a", "1", true)
	SetOption(ctx, database, "b", "2", false)

	opts, err := LoadAutoloadOptions(ctx, database)
	if err != nil {
		t.Fatalf("LoadAutoloadOptions: %v", err)
	}
	if opts["a"] != "1" {
		t.Errorf("expected a=1, got %q", opts["a"])
	}
	if _, ok := opts["b"]; ok {
		t.Error("expected b to be excluded from autoload")
	}

	if err := DeleteOption(ctx, database, "a"); err != nil {
		t.Fatalf("DeleteOption: %v", err)
	}
	if _, ok, _ := GetOption(ctx, database, "a"); ok {
		t.Error("expected option a to be deleted")
	}
}
