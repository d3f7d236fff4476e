package steps

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	"restqa/internal/assert"
	"restqa/internal/client"
	"restqa/internal/endpoints"
	"restqa/internal/model"
)

var errNoUserID = errors.New("no user id stored by an earlier step")

// getEndpoint accepts a catalog name ("user-list") or a path relative to
// the base path ("users/2").
func (st *State) getEndpoint(ctx context.Context, endpoint string) error {
	return st.call(ctx, http.MethodGet, endpoint, nil, nil)
}

func (st *State) listUsers(ctx context.Context) error {
	return st.call(ctx, http.MethodGet, endpoints.UserList, nil, nil)
}

func (st *State) getUser(ctx context.Context) error {
	return st.call(ctx, http.MethodGet, endpoints.SingleUser, nil, nil)
}

func (st *State) deleteUser(ctx context.Context) error {
	return st.call(ctx, http.MethodDelete, endpoints.DeleteUser, nil, nil)
}

// sendUser creates (POST) or replaces (PUT) a user from the first data row.
func (st *State) sendUser(ctx context.Context, method string, tbl *godog.Table) error {
	fields, err := tableRecord(tbl)
	if err != nil {
		return err
	}
	u := model.User{Name: fields["name"], Job: fields["job"]}
	method = strings.ToUpper(method)
	endpoint := endpoints.CreateUser
	if method == http.MethodPut {
		endpoint = endpoints.UpdateUser
	}
	return st.call(ctx, method, endpoint, nil, u)
}

// postRaw sends payload to create-user exactly as written.
func (st *State) postRaw(ctx context.Context, payload string) error {
	req, err := st.request(http.MethodPost, endpoints.CreateUser, nil)
	if err != nil {
		return err
	}
	return st.send(ctx, req.WithRawBody([]byte(payload)))
}

func (st *State) postDocString(ctx context.Context, doc *godog.DocString) error {
	if doc == nil {
		return errors.New("missing request body")
	}
	return st.postRaw(ctx, doc.Content)
}

func (st *State) minimumTotal(n int) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.AtLeast(r, "total", float64(n)) })
}

func (st *State) nonEmptyUsers() error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.NotEmpty(r, "data") })
}

func (st *State) containsUser(id int) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Equal(r, "data.id", id) })
}

func (st *State) userFieldEquals(field, want string) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Equal(r, "data."+field, want) })
}

func (st *State) fieldNotNull(field string) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Present(r, field) })
}

func (st *State) echoedFieldEquals(field, want string) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Equal(r, field, want) })
}

// storeCreatedUser keeps the server-assigned id of the last create call.
func (st *State) storeCreatedUser() error {
	return st.check(func(a *assert.Asserter, r *client.Response) {
		if !a.Present(r, "id") {
			return
		}
		st.userID = assert.Lookup(r.Body, "id").String()
		st.log.Info().Str("user_id", st.userID).Msg("stored created user id")
	})
}

func (st *State) validateStoredUser() error {
	if st.userID == "" {
		return errNoUserID
	}
	return nil
}

func (st *State) registerUser(ctx context.Context, email, password string) error {
	return st.call(ctx, http.MethodPost, endpoints.RegisterSuccess, nil, model.Credentials{Email: email, Password: password})
}

func (st *State) registerEmailOnly(ctx context.Context, email string) error {
	return st.call(ctx, http.MethodPost, endpoints.RegisterUnsuccess, nil, model.Credentials{Email: email})
}

func (st *State) errorIs(want string) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Equal(r, "error", want) })
}

var reqresSteps = []Definition{
	{`^I send GET request to "([^"]*)"$`, func(s *State) any { return s.getEndpoint }},
	{`^I send GET request to "([^"]*)" endpoint$`, func(s *State) any { return s.getEndpoint }},
	{`^I send GET request to retrieve all users$`, func(s *State) any { return s.listUsers }},
	{`^I send GET request to retrieve user details$`, func(s *State) any { return s.getUser }},
	{`^I send a DELETE request to remove the user$`, func(s *State) any { return s.deleteUser }},
	{`^I send a (POST|PUT) request to CREATE user with the following data:$`, func(s *State) any { return s.sendUser }},
	{`^I send a POST request with Invalid payload "([^"]*)"$`, func(s *State) any { return s.postRaw }},
	{`^the request body is:$`, func(s *State) any { return s.postDocString }},
	{`^I register with email "([^"]*)" and password "([^"]*)"$`, func(s *State) any { return s.registerUser }},
	{`^I register with email "([^"]*)" only$`, func(s *State) any { return s.registerEmailOnly }},
	{`^the response should contain minimum of (\d+) fields$`, func(s *State) any { return s.minimumTotal }},
	{`^the response should contain a non-empty list of users$`, func(s *State) any { return s.nonEmptyUsers }},
	{`^the response should contain user with id (\d+)$`, func(s *State) any { return s.containsUser }},
	{`^the response should contain field "([^"]*)" and value "([^"]*)"$`, func(s *State) any { return s.userFieldEquals }},
	{`^the response should contain field "([^"]*)" and value should\s+not be NULL$`, func(s *State) any { return s.fieldNotNull }},
	{`^POST or PUT response should contain field "([^"]*)" and value "([^"]*)" in response body$`, func(s *State) any { return s.echoedFieldEquals }},
	{`^the response error should be "([^"]*)"$`, func(s *State) any { return s.errorIs }},
	{`^(?:And )?I store the created (?:post|user) data for validation$`, func(s *State) any { return s.storeCreatedUser }},
	{`^[Vv]alidate? the created user id from stored data$`, func(s *State) any { return s.validateStoredUser }},
}
