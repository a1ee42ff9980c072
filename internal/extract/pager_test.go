package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"chatdump/internal/chatwoot"
)

func TestConversationPager_WalksAllPages(t *testing.T) {
	api := chatwoot.NewMockAPI()
	api.Pages = [][]chatwoot.Conversation{
		{{ID: 1}, {ID: 2}, {ID: 3}},
		{{ID: 4}, {ID: 5}},
	}

	pager := NewConversationPager(api, chatwoot.ListOptions{})
	all, err := pager.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}

	var ids []int64
	for _, c := range all {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]int64{1, 2, 3, 4, 5}, ids); diff != "" {
		t.Errorf("conversation order mismatch (-want +got):\n%s", diff)
	}

	// The reported total is reached after page 2, so page 3 is never requested.
	if diff := cmp.Diff([]int{1, 2}, api.ConversationCalls); diff != "" {
		t.Errorf("pages requested (-want +got):\n%s", diff)
	}
	if pager.Total() != 5 {
		t.Errorf("Total() = %d, want 5", pager.Total())
	}
}

func TestConversationPager_EmptyAccount(t *testing.T) {
	api := chatwoot.NewMockAPI()

	pager := NewConversationPager(api, chatwoot.ListOptions{})
	all, err := pager.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("All() returned %d conversations, want 0", len(all))
	}
	if len(api.ConversationCalls) != 1 {
		t.Errorf("pages requested = %v, want exactly one probe", api.ConversationCalls)
	}
}

// countlessLister never reports a total, so the pager has to rely on the
// empty-page stop condition.
type countlessLister struct {
	pages [][]chatwoot.Conversation
	calls []int
}

func (l *countlessLister) ListConversations(ctx context.Context, page int, opts chatwoot.ListOptions) (*chatwoot.ConversationPage, error) {
	l.calls = append(l.calls, page)
	if page < 1 || page > len(l.pages) {
		return &chatwoot.ConversationPage{}, nil
	}
	return &chatwoot.ConversationPage{Conversations: l.pages[page-1]}, nil
}

func TestConversationPager_StopsOnEmptyPage(t *testing.T) {
	lister := &countlessLister{pages: [][]chatwoot.Conversation{
		{{ID: 1}, {ID: 2}},
		{{ID: 3}},
	}}

	pager := NewConversationPager(lister, chatwoot.ListOptions{})
	all, err := pager.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("All() returned %d conversations, want 3", len(all))
	}
	if diff := cmp.Diff([]int{1, 2, 3}, lister.calls); diff != "" {
		t.Errorf("pages requested (-want +got):\n%s", diff)
	}
}

func TestConversationPager_PageErrorIsFatal(t *testing.T) {
	api := chatwoot.NewMockAPI()
	api.Pages = [][]chatwoot.Conversation{
		{{ID: 1}, {ID: 2}},
		{{ID: 3}, {ID: 4}},
	}
	pageErr := errors.New("gateway timeout")
	api.ConversationsError[2] = pageErr

	pager := NewConversationPager(api, chatwoot.ListOptions{})
	_, err := pager.All(context.Background())
	if !errors.Is(err, pageErr) {
		t.Fatalf("All() error = %v, want wrapped page error", err)
	}

	// The pager is finished after a failure.
	page, err := pager.Next(context.Background())
	if page != nil || err != nil {
		t.Errorf("Next() after failure = (%v, %v), want (nil, nil)", page, err)
	}
}

func TestConversationPager_ForwardsOptions(t *testing.T) {
	api := chatwoot.NewMockAPI()
	opts := chatwoot.ListOptions{Since: "2024-01-01", Until: "2024-06-30", Status: "open"}

	pager := NewConversationPager(api, opts)
	if _, err := pager.All(context.Background()); err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if diff := cmp.Diff(opts, api.LastListOptions); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}
