// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package reconcile

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/toeirei/ssm/internal/cache"
	"github.com/toeirei/ssm/internal/model"
	"github.com/toeirei/ssm/internal/probe"
	"github.com/toeirei/ssm/internal/sshclient"
)

// fakeStore is an in-memory DesiredStateStore built directly from
// model.PublicKey/Authorization/User values, letting tests assemble a
// desired set without standing up the persisted store.
type fakeStore struct {
	keys      []model.PublicKey
	usernames map[int]string
	desired   map[string][]model.DesiredKey // keyed by "hostID:login"
}

func newFakeStore() *fakeStore {
	return &fakeStore{usernames: map[int]string{}, desired: map[string][]model.DesiredKey{}}
}

func (s *fakeStore) addUser(id int, username string) { s.usernames[id] = username }

func (s *fakeStore) addKey(pk model.PublicKey) { s.keys = append(s.keys, pk) }

func (s *fakeStore) setDesired(hostID int, login string, dks []model.DesiredKey) {
	s.desired[fmt.Sprintf("%d:%s", hostID, login)] = dks
}

func (s *fakeStore) DesiredKeys(ctx context.Context, hostID int, login string) ([]model.DesiredKey, error) {
	return s.desired[fmt.Sprintf("%d:%s", hostID, login)], nil
}

func (s *fakeStore) LookupPublicKey(ctx context.Context, algorithm, blob string) (model.PublicKey, bool, error) {
	for _, k := range s.keys {
		if k.Algorithm == algorithm && k.Blob == blob {
			return k, true, nil
		}
	}
	return model.PublicKey{}, false, nil
}

func (s *fakeStore) Username(ctx context.Context, userID int) (string, error) {
	return s.usernames[userID], nil
}

// fakeWire is a hand-rolled WireClient that serves canned responses per
// verb, recording set_keys writes so tests can assert on generated content.
type fakeWire struct {
	mu          sync.Mutex
	readonly    map[string]probe.ReadonlyState // keyed by login
	fileContent map[string][]byte              // keyed by login; absent key means file missing
	missing     map[string]bool
	lastWritten map[string]string // keyed by login
}

func newFakeWire() *fakeWire {
	return &fakeWire{
		readonly:    map[string]probe.ReadonlyState{},
		fileContent: map[string][]byte{},
		missing:     map[string]bool{},
		lastWritten: map[string]string{},
	}
}

func (w *fakeWire) Execute(ctx context.Context, h model.Host, verb probe.Verb, args []string, stdin []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	login := ""
	if len(args) > 0 {
		login = args[0]
	}
	switch verb {
	case probe.VerbReadonlyState:
		state := w.readonly[login]
		if state.Readonly {
			return []byte(fmt.Sprintf("readonly: %s: %s\n", state.Scope, state.Reason)), nil
		}
		return []byte("none\n"), nil
	case probe.VerbGetKeys:
		if w.missing[login] {
			return nil, &sshclient.ErrExecError{HostName: h.Name, ExitCode: probe.ExitKeysFileAbsent}
		}
		return w.fileContent[login], nil
	case probe.VerbSetKeys:
		if state := w.readonly[login]; state.Readonly {
			return nil, &sshclient.ErrReadonlyRefused{HostName: h.Name, Scope: state.Scope, Reason: state.Reason}
		}
		w.lastWritten[login] = string(stdin)
		w.fileContent[login] = stdin
		w.missing[login] = false
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected verb in test: %s", verb)
	}
}

func (w *fakeWire) DeployProbe(ctx context.Context, h model.Host) error { return nil }

// mustGenerateKey returns a fresh, real ed25519 public key blob, base64
// encoded exactly as it would appear in an authorized_keys line, so
// sshkey.Fingerprint/ParseLine exercise genuine wire-format data rather than
// placeholders. algorithm is currently always "ssh-ed25519"; kept as a
// parameter in case a later test needs a second key type.
func mustGenerateKey(t *testing.T, algorithm string) string {
	t.Helper()
	if algorithm != "ssh-ed25519" {
		t.Fatalf("unsupported test key algorithm %q", algorithm)
	}
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("wrap public key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sshPub.Marshal())
}

func buildEngine(wire *fakeWire, store *fakeStore) *Engine {
	c := cache.New(wire)
	return New(c, wire, store, "")
}

func TestCleanSyncScenario(t *testing.T) {
	aliceBlob := mustGenerateKey(t, "ssh-ed25519")
	bobBlob := mustGenerateKey(t, "ssh-ed25519")

	store := newFakeStore()
	store.addUser(1, "Alice")
	store.addUser(2, "Bob")
	aliceKey := model.PublicKey{ID: 1, Algorithm: "ssh-ed25519", Blob: aliceBlob, UserID: 1, Name: "alice-laptop"}
	bobKey := model.PublicKey{ID: 2, Algorithm: "ssh-ed25519", Blob: bobBlob, UserID: 2, Name: "bob-laptop"}
	store.addKey(aliceKey)
	store.addKey(bobKey)

	h := model.Host{ID: 1, Name: "H"}
	store.setDesired(h.ID, "deploy", []model.DesiredKey{
		{Options: "", Key: aliceKey, OwnerUsername: "Alice"},
		{Options: "no-port-forwarding", Key: bobKey, OwnerUsername: "Bob"},
	})

	wire := newFakeWire()
	wire.missing["deploy"] = true
	engine := buildEngine(wire, store)

	report, err := engine.Diff(context.Background(), h, "deploy", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("expected 2 KeyMissing findings, got %d: %+v", len(report.Findings), report.Findings)
	}
	for _, f := range report.Findings {
		if f.Kind != model.KeyMissing {
			t.Errorf("expected only KeyMissing findings, got %s", f.Kind)
		}
	}

	synced, err := engine.Sync(context.Background(), h, "deploy")
	if err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}
	if synced.State != model.StateInSync {
		t.Fatalf("expected InSync after sync, got %s (findings: %+v)", synced.State, synced.Findings)
	}

	written := wire.lastWritten["deploy"]
	wantBody := fmt.Sprintf("ssh-ed25519 %s Alice\nno-port-forwarding ssh-ed25519 %s Bob\n", aliceBlob, bobBlob)
	if !strings.HasSuffix(written, wantBody) {
		t.Errorf("unexpected generated body:\n%s\nwant suffix:\n%s", written, wantBody)
	}
}

func TestUnknownAndDuplicateScenario(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "Alice")
	aliceBlob := mustGenerateKey(t, "ssh-ed25519")
	aliceKey := model.PublicKey{ID: 1, Algorithm: "ssh-ed25519", Blob: aliceBlob, UserID: 1}
	store.addKey(aliceKey)

	unknownBlob := mustGenerateKey(t, "ssh-ed25519")

	h := model.Host{ID: 1, Name: "H"}
	store.setDesired(h.ID, "deploy", []model.DesiredKey{{Key: aliceKey, OwnerUsername: "Alice"}})

	wire := newFakeWire()
	content := fmt.Sprintf("%s\nssh-ed25519 %s unknown-one\nssh-ed25519 %s unknown-two\nssh-ed25519 %s Alice\n",
		DefaultPragma, unknownBlob, unknownBlob, aliceBlob)
	wire.fileContent["deploy"] = []byte(content)

	engine := buildEngine(wire, store)
	report, err := engine.Diff(context.Background(), h, "deploy", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var unknownCount, duplicateCount, missingCount int
	for _, f := range report.Findings {
		switch f.Kind {
		case model.UnknownKey:
			unknownCount++
		case model.DuplicateKey:
			duplicateCount++
		case model.KeyMissing:
			missingCount++
		}
	}
	if unknownCount != 1 || duplicateCount != 1 || missingCount != 0 {
		t.Fatalf("unexpected finding counts: unknown=%d duplicate=%d missing=%d (%+v)", unknownCount, duplicateCount, missingCount, report.Findings)
	}
}

func TestOptionsDriftScenario(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "Bob")
	bobBlob := mustGenerateKey(t, "ssh-ed25519")
	bobKey := model.PublicKey{ID: 1, Algorithm: "ssh-ed25519", Blob: bobBlob, UserID: 1}
	store.addKey(bobKey)

	h := model.Host{ID: 1, Name: "H"}
	store.setDesired(h.ID, "deploy", []model.DesiredKey{{Options: "no-port-forwarding", Key: bobKey, OwnerUsername: "Bob"}})

	wire := newFakeWire()
	wire.fileContent["deploy"] = []byte(fmt.Sprintf("%s\nno-pty ssh-ed25519 %s Bob\n", DefaultPragma, bobBlob))

	engine := buildEngine(wire, store)
	report, err := engine.Diff(context.Background(), h, "deploy", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Findings) != 1 || report.Findings[0].Kind != model.IncorrectOptions {
		t.Fatalf("expected single IncorrectOptions finding, got %+v", report.Findings)
	}
	f := report.Findings[0]
	if f.Observed != "no-pty" || f.Expected != "no-port-forwarding" {
		t.Errorf("unexpected drift detail: %+v", f)
	}

	synced, err := engine.Sync(context.Background(), h, "deploy")
	if err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}
	if synced.State != model.StateInSync {
		t.Fatalf("expected InSync after sync, got %s", synced.State)
	}
	if !strings.Contains(wire.lastWritten["deploy"], "no-port-forwarding ssh-ed25519") {
		t.Errorf("expected corrected options in written file, got %q", wire.lastWritten["deploy"])
	}
}

func TestReadonlyRefusalScenario(t *testing.T) {
	store := newFakeStore()
	h := model.Host{ID: 1, Name: "H"}
	store.setDesired(h.ID, "deploy", nil)

	wire := newFakeWire()
	wire.readonly["deploy"] = probe.ReadonlyState{Readonly: true, Scope: "user", Reason: "frozen for audit"}
	wire.fileContent["deploy"] = []byte(DefaultPragma + "\n")

	engine := buildEngine(wire, store)
	report, err := engine.Sync(context.Background(), h, "deploy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.State != model.StateReadonly {
		t.Fatalf("expected StateReadonly, got %s", report.State)
	}
	if report.ReadonlyReason != "frozen for audit" {
		t.Errorf("unexpected reason: %q", report.ReadonlyReason)
	}
	if _, wrote := wire.lastWritten["deploy"]; wrote {
		t.Error("expected no write to have occurred")
	}
}

func TestDisabledHostSyncPerformsNoIO(t *testing.T) {
	store := newFakeStore()
	h := model.Host{ID: 1, Name: "H", Disabled: true}
	wire := newFakeWire()
	engine := buildEngine(wire, store)

	report, err := engine.Sync(context.Background(), h, "deploy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Err == nil {
		t.Fatal("expected a Disabled error on the report")
	}
	if _, ok := wire.fileContent["deploy"]; ok {
		t.Error("disabled host sync must not touch the wire client")
	}
}

func TestMissingFileSuppressesPragmaMissing(t *testing.T) {
	store := newFakeStore()
	h := model.Host{ID: 1, Name: "H"}
	store.setDesired(h.ID, "deploy", nil)

	wire := newFakeWire()
	wire.missing["deploy"] = true

	engine := buildEngine(wire, store)
	report, err := engine.Diff(context.Background(), h, "deploy", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range report.Findings {
		if f.Kind == model.PragmaMissing {
			t.Fatal("PragmaMissing must be suppressed when the file is entirely absent")
		}
	}
}

func TestUnrecognizedAlgorithmYieldsFaultyKeyNotUnknownKey(t *testing.T) {
	store := newFakeStore()
	h := model.Host{ID: 1, Name: "H"}
	store.setDesired(h.ID, "deploy", nil)

	wire := newFakeWire()
	wire.fileContent["deploy"] = []byte(DefaultPragma + "\nbogus-algo AAAAB3 comment\n")

	engine := buildEngine(wire, store)
	report, err := engine.Diff(context.Background(), h, "deploy", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Findings) != 1 || report.Findings[0].Kind != model.FaultyKey {
		t.Fatalf("expected single FaultyKey finding, got %+v", report.Findings)
	}
}

func TestGenerateIsOrderIndependent(t *testing.T) {
	store := newFakeStore()
	k1 := model.PublicKey{Algorithm: "ssh-ed25519", Blob: mustGenerateKey(t, "ssh-ed25519")}
	k2 := model.PublicKey{Algorithm: "ssh-ed25519", Blob: mustGenerateKey(t, "ssh-ed25519")}
	engine := buildEngine(newFakeWire(), store)

	a := []model.DesiredKey{{Key: k1, OwnerUsername: "Alice"}, {Key: k2, OwnerUsername: "Bob"}}
	b := []model.DesiredKey{{Key: k2, OwnerUsername: "Bob"}, {Key: k1, OwnerUsername: "Alice"}}

	if engine.Generate(a) != engine.Generate(b) {
		t.Fatal("Generate must be order-independent (P3)")
	}
}

func TestGenerateIsIdempotentAgainstDiff(t *testing.T) {
	store := newFakeStore()
	alice := model.PublicKey{ID: 1, Algorithm: "ssh-ed25519", Blob: mustGenerateKey(t, "ssh-ed25519"), UserID: 1}
	store.addUser(1, "Alice")
	store.addKey(alice)

	h := model.Host{ID: 1, Name: "H"}
	desired := []model.DesiredKey{{Key: alice, OwnerUsername: "Alice"}}
	store.setDesired(h.ID, "deploy", desired)

	engine := buildEngine(newFakeWire(), store)
	content := engine.Generate(desired)

	pragmaPresent, lines := engine.splitObserved([]byte(content))
	if !pragmaPresent {
		t.Fatal("expected generated content to carry the pragma")
	}
	findings, err := engine.computeFindings(context.Background(), true, pragmaPresent, lines, desired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings re-diffing freshly generated content (P2), got %+v", findings)
	}
}

func TestCommaInsideQuotesStaysOneLine(t *testing.T) {
	store := newFakeStore()
	h := model.Host{ID: 1, Name: "H"}
	store.setDesired(h.ID, "deploy", nil)

	blob := mustGenerateKey(t, "ssh-ed25519")
	wire := newFakeWire()
	wire.fileContent["deploy"] = []byte(DefaultPragma + "\ncommand=\"ls,-la\" ssh-ed25519 " + blob + " note\n")

	engine := buildEngine(wire, store)
	report, err := engine.Diff(context.Background(), h, "deploy", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The key is unknown to the store (no matching PublicKey), so the only
	// finding should be UnknownKey — proof the comma-in-quotes line parsed
	// as exactly one record rather than splitting on the embedded comma.
	if len(report.Findings) != 1 || report.Findings[0].Kind != model.UnknownKey {
		t.Fatalf("expected single UnknownKey finding, got %+v", report.Findings)
	}
}
