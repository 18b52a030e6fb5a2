package app

import (
	"fmt"
	"os"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Winstonlu01/Lunori/internal/attachments"
	"github.com/Winstonlu01/Lunori/internal/draft"
	"github.com/Winstonlu01/Lunori/internal/entries"
	"github.com/Winstonlu01/Lunori/internal/remote"
)

// TestLiveTUIFlow drives the model against a running backend.
// Skipped if the backend isn't reachable.
func TestLiveTUIFlow(t *testing.T) {
	client, err := remote.New(os.Getenv("LUNORI_SERVER_URL"))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err := client.Health(t.Context()); err != nil {
		t.Skip("backend not running")
	}

	store, err := draft.Open(":memory:")
	if err != nil {
		t.Fatalf("open drafts: %v", err)
	}
	defer store.Close()

	cache := entries.NewCache(client)
	m := New(Deps{
		Ctx:     t.Context(),
		Journal: cache,
		Staging: attachments.NewTracker(client, nil),
		Drafts:  store,
		Health:  client,
		Server:  client.BaseURL(),
	})

	m, _ = applyUpdate(m, tea.WindowSizeMsg{Width: 120, Height: 40})

	m, cmd := applyUpdate(m, healthCmd(t.Context(), client)())
	if !m.connected {
		t.Fatalf("expected connected, error %q", m.connError)
	}
	m, _ = applyUpdate(m, cmd())
	if m.errorMessage != "" {
		t.Fatalf("refresh: %s", m.errorMessage)
	}
	fmt.Printf("Loaded %d entries, streak %d\n", len(m.list), m.stats.Streak)

	if len(m.list) > 0 {
		m, cmd = applyUpdate(m, key("enter"))
		m, _ = applyUpdate(m, cmd())
		if m.detail == nil {
			t.Fatalf("detail not loaded: %s", m.errorMessage)
		}
		if !cache.IsHydrated(m.detail.ID) {
			t.Error("opening an entry should hydrate it")
		}
	}

	fmt.Println("=== Live View ===")
	fmt.Println(m.View())
}
