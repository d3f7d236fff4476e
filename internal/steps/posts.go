package steps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"restqa/internal/assert"
	"restqa/internal/client"
	"restqa/internal/endpoints"
	"restqa/internal/model"
)

// invalidPost is sent when a scenario asks for invalid post data. The API
// may accept it liberally or reject it.
const invalidPost = `{"invalidField": "value"}`

var errNoPost = errors.New("no post data prepared by an earlier step")

var requiredPostFields = []string{"id", "userId", "title", "body"}

func idParam(id int) map[string]string { return map[string]string{"id": strconv.Itoa(id)} }

func (st *State) workingPost() (*model.Post, error) {
	if st.post == nil {
		return nil, errNoPost
	}
	return st.post, nil
}

func (st *State) havePost(title, body string) error {
	st.post, st.invalid = model.NewPost(1, title, body), false
	return nil
}

func (st *State) haveUpdatedPost(title, body string) error {
	st.post, st.invalid = model.NewPost(1, title, body).WithID(1), false
	return nil
}

func (st *State) havePartialPost(title string) error {
	st.post, st.invalid = &model.Post{Title: title}, false
	return nil
}

func (st *State) haveInvalidPost() error {
	st.post, st.invalid = nil, true
	return nil
}

// havePostTable reads a two-column field/value table or a header row
// followed by one data row.
func (st *State) havePostTable(tbl *godog.Table) error {
	fields, err := tableRecord(tbl)
	if err != nil {
		return err
	}
	p := &model.Post{UserID: 1}
	for k, v := range fields {
		switch strings.ToLower(k) {
		case "userid":
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("userId %q: %w", v, err)
			}
			p.UserID = n
		case "id":
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("id %q: %w", v, err)
			}
			p.WithID(n)
		case "title":
			p.Title = v
		case "body":
			p.Body = v
		default:
			return fmt.Errorf("unknown post field %q", k)
		}
	}
	st.post, st.invalid = p, false
	return nil
}

// postExists fetches the post. A missing post is logged, not failed.
func (st *State) postExists(ctx context.Context, id int) error {
	if err := st.call(ctx, http.MethodGet, endpoints.PostByID, idParam(id), nil); err != nil {
		return err
	}
	if st.resp != nil && st.resp.StatusCode != http.StatusOK {
		st.log.Warn().Int("post_id", id).Int("status", st.resp.StatusCode).Msg("post does not exist, continuing")
	}
	return nil
}

func (st *State) createPost(ctx context.Context) error {
	req, err := st.request(http.MethodPost, endpoints.Posts, nil)
	if err != nil {
		return err
	}
	switch {
	case st.invalid:
		req.WithRawBody([]byte(invalidPost))
	case st.post != nil:
		req.WithBody(st.post)
	default:
		return errNoPost
	}
	return st.send(ctx, req)
}

func (st *State) getPost(ctx context.Context, id int) error {
	return st.call(ctx, http.MethodGet, endpoints.PostByID, idParam(id), nil)
}

func (st *State) listPosts(ctx context.Context) error {
	return st.call(ctx, http.MethodGet, endpoints.Posts, nil, nil)
}

func (st *State) putPost(ctx context.Context, id int) error {
	p, err := st.workingPost()
	if err != nil {
		return err
	}
	return st.call(ctx, http.MethodPut, endpoints.PostByID, idParam(id), p)
}

// patchPost sends the title only.
func (st *State) patchPost(ctx context.Context, id int) error {
	p, err := st.workingPost()
	if err != nil {
		return err
	}
	return st.call(ctx, http.MethodPatch, endpoints.PostByID, idParam(id), &model.Post{Title: p.Title})
}

func (st *State) deletePost(ctx context.Context, id int) error {
	return st.call(ctx, http.MethodDelete, endpoints.PostByID, idParam(id), nil)
}

func (st *State) getStoredPost(ctx context.Context) error {
	if st.storedID == nil {
		return errNoStoredID
	}
	return st.getPost(ctx, *st.storedID)
}

func (st *State) deleteStoredPost(ctx context.Context) error {
	if st.storedID == nil {
		return errNoStoredID
	}
	return st.deletePost(ctx, *st.storedID)
}

func (st *State) containsPostDetails() error {
	p, err := st.workingPost()
	if err != nil {
		return err
	}
	return st.check(func(a *assert.Asserter, r *client.Response) {
		a.Equal(r, "title", p.Title)
		a.Equal(r, "body", p.Body)
		a.Equal(r, "userId", p.UserID)
	})
}

func (st *State) hasValidPostID() error {
	return st.check(func(a *assert.Asserter, r *client.Response) {
		a.Present(r, "id")
		a.Greater(r, "id", 0)
	})
}

func (st *State) containsPostFor(id int) error {
	return st.check(func(a *assert.Asserter, r *client.Response) {
		a.Equal(r, "id", id)
		for _, f := range requiredPostFields[1:] {
			a.Present(r, f)
		}
	})
}

func (st *State) containsMultiplePosts() error {
	return st.check(func(a *assert.Asserter, r *client.Response) {
		var posts []model.Post
		if err := model.Decode(r.Body, &posts); err != nil {
			a.Fail(err)
			return
		}
		a.Check(len(posts) > 0, "expected at least one post, got none")
	})
}

func (st *State) eachPostHasRequiredFields() error {
	return st.check(func(a *assert.Asserter, r *client.Response) {
		a.EachHas(r, "", requiredPostFields...)
	})
}

func (st *State) containsUpdatedPost() error {
	p, err := st.workingPost()
	if err != nil {
		return err
	}
	return st.check(func(a *assert.Asserter, r *client.Response) {
		a.Equal(r, "title", p.Title)
		a.Equal(r, "body", p.Body)
	})
}

func (st *State) containsPatchedTitle() error {
	p, err := st.workingPost()
	if err != nil {
		return err
	}
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Equal(r, "title", p.Title) })
}

func (st *State) handlesInvalidData() error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.StatusIn(r, assert.NegativeCreate) })
}

func (st *State) storeCreatedPostID() error {
	return st.check(func(a *assert.Asserter, r *client.Response) {
		var created model.Post
		if err := model.Decode(r.Body, &created); err != nil {
			a.Fail(err)
			return
		}
		if !a.Check(created.ID != nil && *created.ID > 0, "created post has no positive id: %s", r.Body) {
			return
		}
		st.storedID = created.ID
		st.log.Info().Int("post_id", *created.ID).Msg("stored created post id")
	})
}

func (st *State) matchesCreatedPost() error {
	if st.storedID == nil {
		return errNoStoredID
	}
	p, err := st.workingPost()
	if err != nil {
		return err
	}
	id := *st.storedID
	return st.check(func(a *assert.Asserter, r *client.Response) {
		a.Equal(r, "id", id)
		a.Equal(r, "title", p.Title)
		a.Equal(r, "body", p.Body)
	})
}

// tableRecord turns a data table into one record. Two-column tables
// without a name/value header are read as key/value pairs; anything else
// is a header row followed by exactly one row of values.
func tableRecord(tbl *godog.Table) (map[string]string, error) {
	if tbl == nil || len(tbl.Rows) == 0 {
		return nil, errors.New("empty data table")
	}
	cells := func(i int) []string {
		row := tbl.Rows[i].Cells
		out := make([]string, len(row))
		for j, c := range row {
			out[j] = strings.TrimSpace(c.Value)
		}
		return out
	}
	head := cells(0)
	out := map[string]string{}
	if len(tbl.Rows) != 2 {
		if len(head) != 2 {
			return nil, fmt.Errorf("data table: want a header and one row, got %d rows", len(tbl.Rows))
		}
		for i := range tbl.Rows {
			kv := cells(i)
			out[kv[0]] = kv[1]
		}
		return out, nil
	}
	vals := cells(1)
	if len(vals) != len(head) {
		return nil, fmt.Errorf("data table: %d headers but %d values", len(head), len(vals))
	}
	for i, k := range head {
		out[k] = vals[i]
	}
	return out, nil
}

var postSteps = []Definition{
	{`^I have post data with title "([^"]*)" and body "([^"]*)"$`, func(s *State) any { return s.havePost }},
	{`^I have updated post data with title "([^"]*)" and body "([^"]*)"$`, func(s *State) any { return s.haveUpdatedPost }},
	{`^I have partial update data with title "([^"]*)"$`, func(s *State) any { return s.havePartialPost }},
	{`^I have invalid post data$`, func(s *State) any { return s.haveInvalidPost }},
	{`^I have the following post data:$`, func(s *State) any { return s.havePostTable }},
	{`^a post with ID (\d+) exists$`, func(s *State) any { return s.postExists }},
	{`^I send a POST request to create the post$`, func(s *State) any { return s.createPost }},
	{`^I send a GET request for post ID (\d+)$`, func(s *State) any { return s.getPost }},
	{`^I send a GET request to retrieve all posts$`, func(s *State) any { return s.listPosts }},
	{`^I send a PUT request to update post ID (\d+)$`, func(s *State) any { return s.putPost }},
	{`^I send a PATCH request to update post ID (\d+)$`, func(s *State) any { return s.patchPost }},
	{`^I send a DELETE request for post ID (\d+)$`, func(s *State) any { return s.deletePost }},
	{`^I send a GET request for the stored post ID$`, func(s *State) any { return s.getStoredPost }},
	{`^I send a DELETE request for the stored post ID$`, func(s *State) any { return s.deleteStoredPost }},
	{`^the response should contain the post details$`, func(s *State) any { return s.containsPostDetails }},
	{`^the response should have a valid post ID$`, func(s *State) any { return s.hasValidPostID }},
	{`^the response should contain post details for ID (\d+)$`, func(s *State) any { return s.containsPostFor }},
	{`^the response should contain multiple posts$`, func(s *State) any { return s.containsMultiplePosts }},
	{`^each post should have required fields$`, func(s *State) any { return s.eachPostHasRequiredFields }},
	{`^the response should contain the updated post details$`, func(s *State) any { return s.containsUpdatedPost }},
	{`^the response should contain the patched title$`, func(s *State) any { return s.containsPatchedTitle }},
	{`^the response should handle the invalid data appropriately$`, func(s *State) any { return s.handlesInvalidData }},
	{`^I store the created post ID$`, func(s *State) any { return s.storeCreatedPostID }},
	{`^the response should match the originally created post data$`, func(s *State) any { return s.matchesCreatedPost }},
}
