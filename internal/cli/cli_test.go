package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/lherron/ttags/internal/config"
	"github.com/lherron/ttags/internal/journal"
	"github.com/lherron/ttags/internal/session"
	"github.com/lherron/ttags/internal/testutil"
)

type fakeLabel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fakeCard struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Labels []fakeLabel `json:"labels"`
}

// fakeTrello serves one board with one list and applies label writes to
// its cards, so a refresh sees the result of a merge.
type fakeTrello struct {
	mu           sync.Mutex
	labels       map[string]fakeLabel
	cards        []*fakeCard
	boardFetches int
	writes       []string
}

func newFakeTrello(t *testing.T) (*fakeTrello, *httptest.Server) {
	t.Helper()
	f := &fakeTrello{
		labels: map[string]fakeLabel{
			"labelid1": {ID: "labelid1", Name: "label1"},
			"x":        {ID: "x", Name: "labell1"},
			"o":        {ID: "o", Name: "other"},
		},
		cards: []*fakeCard{
			{ID: "c1", Name: "first", Labels: []fakeLabel{{ID: "labelid1", Name: "label1"}}},
			{ID: "c2", Name: "second", Labels: []fakeLabel{{ID: "x", Name: "labell1"}}},
			{ID: "c3", Name: "third", Labels: []fakeLabel{{ID: "o", Name: "other"}}},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /members/me/boards", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.boardFetches++
		f.mu.Unlock()
		fmt.Fprint(w, `[{"id":"b1","name":"Work","desc":"ignored","lists":[{"id":"l1","name":"Todo"}]}]`)
	})
	mux.HandleFunc("GET /lists/l1/cards", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(f.cards)
	})
	mux.HandleFunc("POST /cards/{card}/idLabels", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		labelID := r.FormValue("value")
		f.writes = append(f.writes, "add "+r.PathValue("card")+" "+labelID)
		if c := f.card(r.PathValue("card")); c != nil {
			c.Labels = append(c.Labels, f.labels[labelID])
		}
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("DELETE /cards/{card}/idLabels/{label}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.writes = append(f.writes, "remove "+r.PathValue("card")+" "+r.PathValue("label"))
		if c := f.card(r.PathValue("card")); c != nil {
			kept := c.Labels[:0]
			for _, l := range c.Labels {
				if l.ID != r.PathValue("label") {
					kept = append(kept, l)
				}
			}
			c.Labels = kept
		}
		fmt.Fprint(w, `{"_value":null}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeTrello) card(id string) *fakeCard {
	for _, c := range f.cards {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (f *fakeTrello) snapshotWrites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// isolate gives the test its own HOME, journal and a quiet logger.
func isolate(t *testing.T) string {
	t.Helper()
	home := testutil.Isolate(t)
	t.Setenv("TTAGS_JOURNAL_PATH", filepath.Join(home, "journal.db"))
	t.Setenv("TTAGS_LOG_LEVEL", "error")
	return home
}

func loggedIn(t *testing.T, srv *httptest.Server) {
	t.Helper()
	t.Setenv("TTAGS_API_KEY", "key")
	t.Setenv("TTAGS_API_TOKEN", "token")
	t.Setenv("TTAGS_API_BASE_URL", srv.URL)
	t.Setenv("TTAGS_RATE_LIMIT", "-1")
}

func runCLI(t *testing.T, input string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(input), &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestShell_SuggestMergesAndRefreshes(t *testing.T) {
	isolate(t)
	fake, srv := newFakeTrello(t)
	loggedIn(t, srv)

	input := "suggest\ny\nlabel1\nsuggest\nquit\n"
	out, errOut, err := runCLI(t, input)
	if err != nil {
		t.Fatalf("shell failed: %v\nstderr: %s", err, errOut)
	}

	expected := []string{"remove c2 x", "add c2 labelid1"}
	if got := fake.snapshotWrites(); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected writes %v, got %v", expected, got)
	}
	if fake.boardFetches != 2 {
		t.Errorf("expected the dirty snapshot to be fetched again, got %d board fetches", fake.boardFetches)
	}

	for _, want := range []string{
		shellIntro,
		shellPrompt,
		`"label1", "labell1"`,
		"(y/n): ",
		"Choose from - label1, labell1: ",
		"Groups offered: 1, merged: 1, skipped: 0, calls issued: 2",
		"Journal pass: ",
		"No similar labels found.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestShell_FlagsDoNotLeakBetweenCommands(t *testing.T) {
	isolate(t)
	fake, srv := newFakeTrello(t)
	loggedIn(t, srv)

	input := "suggest --dry-run\ny\nlabel1\nsuggest\ny\nlabel1\nquit\n"
	out, errOut, err := runCLI(t, input)
	if err != nil {
		t.Fatalf("shell failed: %v\nstderr: %s", err, errOut)
	}

	if !strings.Contains(out, "(dry run)") {
		t.Errorf("expected a dry run first, got:\n%s", out)
	}
	if !strings.Contains(out, `Merge "label1", "labell1" into "label1" (labelid1): 1 card(s)`) {
		t.Errorf("expected the dry run plan, got:\n%s", out)
	}
	if got := fake.snapshotWrites(); len(got) != 2 {
		t.Errorf("expected the second suggest to write, got %v", got)
	}
}

func TestSuggest_Declined(t *testing.T) {
	isolate(t)
	fake, srv := newFakeTrello(t)
	loggedIn(t, srv)

	out, _, err := runCLI(t, "maybe\nn\n", "suggest")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(fake.snapshotWrites()) != 0 {
		t.Errorf("expected no writes, got %v", fake.snapshotWrites())
	}
	if !strings.Contains(out, `Didn't understand "maybe".`) || !strings.Contains(out, "Not replacing, moving on.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "Journal pass:") {
		t.Errorf("expected no journal pass without writes, got:\n%s", out)
	}
}

func TestSuggest_InputClosedMidPrompt(t *testing.T) {
	isolate(t)
	_, srv := newFakeTrello(t)
	loggedIn(t, srv)

	_, _, err := runCLI(t, "", "suggest")
	if err == nil {
		t.Fatal("expected suggest to fail when input ends")
	}
}

func TestSuggest_RequiresLogin(t *testing.T) {
	isolate(t)

	_, _, err := runCLI(t, "", "suggest")
	if !errors.Is(err, session.ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
	if msg := ErrorMessage(err); msg != "Sorry, you are not logged in. Log in with 'login'." {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestRun_StateDoesNotCarryAcrossInvocations(t *testing.T) {
	isolate(t)
	_, srv := newFakeTrello(t)
	loggedIn(t, srv)

	if _, errOut, err := runCLI(t, "", "reinit"); err != nil {
		t.Fatalf("reinit failed: %v\nstderr: %s", err, errOut)
	}

	t.Setenv("TTAGS_API_KEY", "")
	t.Setenv("TTAGS_API_TOKEN", "")

	_, _, err := runCLI(t, "", "suggest")
	if !errors.Is(err, session.ErrAuthenticationRequired) {
		t.Fatalf("expected a fresh logged-out session, got %v", err)
	}
}

func TestSuggest_UnknownStrategy(t *testing.T) {
	isolate(t)
	_, srv := newFakeTrello(t)
	loggedIn(t, srv)

	if _, _, err := runCLI(t, "", "suggest", "--strategy", "soundex"); err == nil {
		t.Fatal("expected unknown strategy to fail")
	}
}

func TestLogin_MissingCredentials(t *testing.T) {
	isolate(t)

	_, _, err := runCLI(t, "", "login")
	if !errors.Is(err, config.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	if !strings.Contains(ErrorMessage(err), "client_credentials.json") {
		t.Errorf("expected hint about the credentials file, got %q", ErrorMessage(err))
	}
}

func TestLogin_StaticToken(t *testing.T) {
	isolate(t)
	_, srv := newFakeTrello(t)
	loggedIn(t, srv)

	out, _, err := runCLI(t, "", "login", "--print-token")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	for _, want := range []string{"Connected with Trello", "1 board(s), 1 list(s), 3 card(s)", "api_token: token", "Logged in."} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestShell_LogoutTwice(t *testing.T) {
	isolate(t)
	_, srv := newFakeTrello(t)
	loggedIn(t, srv)

	out, errOut, err := runCLI(t, "logout\nlogout\nreinit\n")
	if err != nil {
		t.Fatalf("shell failed: %v", err)
	}
	if !strings.Contains(out, "Logged out.") || !strings.Contains(out, "Not logged in. Doing nothing.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(errOut, "Sorry, you are not logged in.") {
		t.Errorf("expected reinit to ask for a login, got stderr:\n%s", errOut)
	}
}

func TestShell_UnknownCommandKeepsRunning(t *testing.T) {
	isolate(t)

	out, errOut, err := runCLI(t, "frobnicate\n?\nshell\nexit\n")
	if err != nil {
		t.Fatalf("shell failed: %v", err)
	}
	if !strings.Contains(errOut, `unknown command "frobnicate"`) {
		t.Errorf("expected unknown command error, got stderr:\n%s", errOut)
	}
	if !strings.Contains(errOut, "already in the shell") {
		t.Errorf("expected nested shell to be refused, got stderr:\n%s", errOut)
	}
	if !strings.Contains(out, "Available Commands") {
		t.Errorf("expected ? to print help, got:\n%s", out)
	}
}

func TestReinitAndShow(t *testing.T) {
	isolate(t)
	_, srv := newFakeTrello(t)
	loggedIn(t, srv)

	out, _, err := runCLI(t, "reinit\nshow --output json\n")
	if err != nil {
		t.Fatalf("shell failed: %v", err)
	}
	if !strings.Contains(out, "Retrieved data: 1 board(s), 1 list(s), 3 card(s)") {
		t.Errorf("expected reinit summary, got:\n%s", out)
	}

	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end < start {
		t.Fatalf("expected json in output, got:\n%s", out)
	}
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(out[start:end+1]), &snap); err != nil {
		t.Fatalf("show output is not a snapshot: %v", err)
	}
	if len(snap.Boards) != 1 || len(snap.Lists) != 1 || len(snap.Cards) != 3 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestShow_Table(t *testing.T) {
	isolate(t)
	_, srv := newFakeTrello(t)
	loggedIn(t, srv)

	out, _, err := runCLI(t, "reinit\nshow\n")
	if err != nil {
		t.Fatalf("shell failed: %v", err)
	}
	for _, want := range []string{"Boards (1)", "Lists (1)", "Cards (3)", "second  c2  labell1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestJournalCommand(t *testing.T) {
	isolate(t)
	_, srv := newFakeTrello(t)
	loggedIn(t, srv)

	if _, _, err := runCLI(t, "y\nlabel1\n", "suggest"); err != nil {
		t.Fatalf("suggest failed: %v", err)
	}

	out, _, err := runCLI(t, "", "journal", "--output", "json")
	if err != nil {
		t.Fatalf("journal failed: %v", err)
	}
	var passes []journal.Pass
	if err := json.Unmarshal([]byte(out), &passes); err != nil {
		t.Fatalf("journal output is not json: %v\n%s", err, out)
	}
	if len(passes) != 1 || passes[0].Status != journal.StatusCompleted || passes[0].Calls != 2 {
		t.Fatalf("unexpected passes %+v", passes)
	}

	out, _, err = runCLI(t, "", "journal", passes[0].ID[:8], "-o", "json")
	if err != nil {
		t.Fatalf("journal <pass> failed: %v", err)
	}
	var entries []journal.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("entries output is not json: %v\n%s", err, out)
	}
	if len(entries) != 2 || entries[0].Op != "remove" || entries[1].Op != "add" {
		t.Errorf("unexpected entries %+v", entries)
	}

	out, _, err = runCLI(t, "", "journal", "--incomplete", "-o", "json")
	if err != nil {
		t.Fatalf("journal --incomplete failed: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("expected no incomplete cards, got %s", out)
	}
}

func TestJournalCommand_Disabled(t *testing.T) {
	isolate(t)
	t.Setenv("TTAGS_JOURNAL_PATH", "off")

	out, _, err := runCLI(t, "", "journal")
	if err != nil {
		t.Fatalf("journal failed: %v", err)
	}
	if !strings.Contains(out, "disabled") {
		t.Errorf("expected disabled notice, got %q", out)
	}
}

func TestVersion_SkipsConfig(t *testing.T) {
	isolate(t)
	t.Setenv("TTAGS_CALLBACK_PORT", "not-a-port")

	out, _, err := runCLI(t, "", "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var info map[string]interface{}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version output is not json: %v", err)
	}
	if info["version"] != Version {
		t.Errorf("expected version %s, got %v", Version, info["version"])
	}

	if _, _, err := runCLI(t, "", "show"); err == nil {
		t.Error("expected show to fail on invalid config")
	}
}
