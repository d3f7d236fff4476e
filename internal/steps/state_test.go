package steps

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"restqa/internal/assert"
	"restqa/internal/client"
)

func testSuite() *Suite {
	return &Suite{Log: zerolog.Nop()}
}

func synthetic(status int, body string, elapsed time.Duration) *client.Response {
	return &client.Response{
		Method:     http.MethodGet,
		URL:        "http://api.test/posts/1",
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json; charset=utf-8"}},
		Body:       []byte(body),
		Elapsed:    elapsed,
	}
}

const post1 = `{"id":1,"userId":1,"title":"sunt aut facere","body":"quia et suscipit"}`

func TestLatencyStep(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr bool
	}{
		{"under bound", 1500 * time.Millisecond, false},
		{"at bound", 2000 * time.Millisecond, false},
		{"over bound", 2500 * time.Millisecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testSuite().NewState()
			st.begin(tt.name, nil)
			st.resp = synthetic(http.StatusOK, post1, tt.elapsed)
			err := st.latencyBelow(2000)
			if (err != nil) != tt.wantErr {
				t.Fatalf("latencyBelow(2000) with %v: err = %v, want error %v", tt.elapsed, err, tt.wantErr)
			}
		})
	}
}

func TestAssertionWithoutResponse(t *testing.T) {
	checks := map[string]func(*State) error{
		"status":        func(st *State) error { return st.statusShouldBe(200) },
		"field":         func(st *State) error { return st.fieldShouldBe("id", "1") },
		"header":        func(st *State) error { return st.headerShouldBe("Server", "x") },
		"latency":       func(st *State) error { return st.latencyBelow(2000) },
		"post details":  func(st *State) error { return st.containsPostFor(1) },
		"invalid data":  func(st *State) error { return st.handlesInvalidData() },
		"user list":     func(st *State) error { return st.nonEmptyUsers() },
		"token":         func(st *State) error { return st.containsToken() },
		"store post id": func(st *State) error { return st.storeCreatedPostID() },
	}
	for name, check := range checks {
		t.Run(name, func(t *testing.T) {
			st := testSuite().NewState()
			st.begin(name, nil)
			err := check(st)
			if !errors.Is(err, ErrNoResponse) {
				t.Fatalf("err = %v, want ErrNoResponse", err)
			}
		})
	}
}

func TestHardModeKeepsFirstFailure(t *testing.T) {
	st := testSuite().NewState()
	st.begin("hard", []string{"@smoke"})
	st.resp = synthetic(http.StatusOK, post1, time.Millisecond)

	if st.Mode() != assert.Hard {
		t.Fatalf("mode = %v, want hard", st.Mode())
	}
	if err := st.statusShouldBe(201); err == nil {
		t.Fatal("status 201 passed against a 200 response")
	}
	err := st.fieldShouldBe("title", "different")
	var ae *assert.Error
	if !errors.As(err, &ae) {
		t.Fatalf("err = %T, want *assert.Error", err)
	}
	if len(ae.Failures) != 1 {
		t.Fatalf("hard mode recorded %d failures, want 1", len(ae.Failures))
	}
}

func TestSoftModeAggregates(t *testing.T) {
	st := testSuite().NewState()
	st.begin("soft", []string{"@soft"})
	st.resp = synthetic(http.StatusOK, post1, 3*time.Second)

	for _, step := range []error{
		st.statusShouldBe(201),
		st.fieldShouldBe("title", "different"),
		st.fieldShouldBe("userId", "1"),
		st.latencyBelow(2000),
	} {
		if step != nil {
			t.Fatalf("soft step returned %v, want nil", step)
		}
	}

	err := st.softAssertionsPass()
	var ae *assert.Error
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *assert.Error", err)
	}
	if len(ae.Failures) != 3 {
		t.Fatalf("got %d failures, want 3:\n%v", len(ae.Failures), err)
	}
	if err := st.settle(); err != nil {
		t.Fatalf("settle after flush = %v, want nil", err)
	}
}

func TestStatesAreIsolated(t *testing.T) {
	s := testSuite()
	a, b := s.NewState(), s.NewState()
	a.begin("a", []string{"@soft"})
	b.begin("b", nil)

	if err := a.havePost("only in a", "body"); err != nil {
		t.Fatal(err)
	}
	a.resp = synthetic(http.StatusOK, post1, 0)
	id := 7
	a.storedID = &id

	if b.post != nil || b.resp != nil || b.storedID != nil {
		t.Fatal("state leaked between scenarios")
	}
	if b.Mode() != assert.Hard {
		t.Fatalf("b mode = %v, want hard", b.Mode())
	}
	if err := b.getStoredPost(t.Context()); !errors.Is(err, errNoStoredID) {
		t.Fatalf("err = %v, want errNoStoredID", err)
	}
}

func TestStoreCreatedPostID(t *testing.T) {
	st := testSuite().NewState()
	st.begin("store", nil)
	st.resp = synthetic(http.StatusCreated, `{"id":101,"title":"t"}`, 0)
	if err := st.storeCreatedPostID(); err != nil {
		t.Fatal(err)
	}
	if st.storedID == nil || *st.storedID != 101 {
		t.Fatalf("storedID = %v, want 101", st.storedID)
	}

	st.havePost("t", "")
	st.resp = synthetic(http.StatusOK, `{"id":101,"title":"t","body":""}`, 0)
	if err := st.matchesCreatedPost(); err != nil {
		t.Fatal(err)
	}
}

func TestPostResponsesDecodeTolerantly(t *testing.T) {
	st := testSuite().NewState()
	st.begin("decode", nil)
	st.resp = synthetic(http.StatusCreated, `{"id":7,"title":"t","createdAt":"2024-01-01","extra":{"a":1}}`, 0)
	if err := st.storeCreatedPostID(); err != nil {
		t.Fatalf("unknown fields must be ignored: %v", err)
	}
	if st.storedID == nil || *st.storedID != 7 {
		t.Fatalf("storedID = %v, want 7", st.storedID)
	}

	st = testSuite().NewState()
	st.begin("no id", nil)
	st.resp = synthetic(http.StatusCreated, `{"title":"t"}`, 0)
	if err := st.storeCreatedPostID(); err == nil || st.storedID != nil {
		t.Fatalf("a body without id must fail: err=%v stored=%v", err, st.storedID)
	}

	st = testSuite().NewState()
	st.begin("list", nil)
	st.resp = synthetic(http.StatusOK, `[`+post1+`,{"id":2,"userId":1,"title":"x","body":"y","tags":["z"]}]`, 0)
	if err := st.containsMultiplePosts(); err != nil {
		t.Fatal(err)
	}
	st.resp = synthetic(http.StatusOK, `[]`, 0)
	if err := st.containsMultiplePosts(); err == nil {
		t.Fatal("an empty list must fail")
	}
}

func TestNegativeCreateAcceptsPolicySet(t *testing.T) {
	for _, code := range []int{201, 400, 422, 500} {
		st := testSuite().NewState()
		st.begin("negative", nil)
		st.resp = synthetic(code, `{}`, 0)
		err := st.handlesInvalidData()
		if want := code != 500; (err == nil) != want {
			t.Errorf("status %d: err = %v", code, err)
		}
	}
}
