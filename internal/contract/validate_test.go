package contract_test

import (
	"context"
	"net/http"
	"testing"

	"restqa/internal/client"
	"restqa/internal/contract"
)

const openapiYAML = `
openapi: 3.0.3
info: { title: Test API, version: "1.0.0" }
paths:
  /users:
    post:
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              properties:
                name: { type: string }
                job: { type: string }
      responses:
        "201":
          description: created
          content:
            application/json:
              schema:
                type: object
                properties:
                  id: { type: string }
                  name: { type: string }
                  job: { type: string }
                required: [id, name]
  /users/{id}:
    parameters:
      - { name: id, in: path, required: true, schema: { type: integer } }
    get:
      responses:
        "200": { description: ok }
    delete:
      responses:
        "204": { description: deleted }
`

func load(t *testing.T) *contract.Validator {
	t.Helper()
	v, err := contract.LoadFromBytes([]byte(openapiYAML))
	if err != nil {
		t.Fatalf("load openapi: %v", err)
	}
	return v
}

func created(ct, body string) *client.Response {
	h := http.Header{}
	if ct != "" {
		h.Set("Content-Type", ct)
	}
	return &client.Response{
		Method:        http.MethodPost,
		URL:           "http://api.test/users",
		StatusCode:    http.StatusCreated,
		Header:        h,
		Body:          []byte(body),
		RequestHeader: http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestContract_ValidatesResponse_OK(t *testing.T) {
	v := load(t)
	path, method, err := v.ValidateResponse(context.Background(),
		created("application/json; charset=utf-8", `{"id":"17","name":"morpheus","job":"leader"}`))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if path != "/users" || method != http.MethodPost {
		t.Fatalf("route = %s %s", method, path)
	}
}

func TestContract_BodyMismatch_Fails(t *testing.T) {
	v := load(t)
	path, _, err := v.ValidateResponse(context.Background(), created("application/json", `{"id":17}`))
	if err == nil {
		t.Fatal("numeric id and missing name must break the contract")
	}
	if path != "/users" {
		t.Fatalf("route should be reported on failure, got %q", path)
	}
}

func TestContract_UndocumentedStatus_Fails(t *testing.T) {
	v := load(t)
	resp := created("application/json", `{}`)
	resp.StatusCode = http.StatusTeapot
	if _, _, err := v.ValidateResponse(context.Background(), resp); err == nil {
		t.Fatal("status 418 is not documented and must fail")
	}
}

func TestContract_ResponseMissingContentType_Fails(t *testing.T) {
	v := load(t)
	if _, _, err := v.ValidateResponse(context.Background(), created("", `{"id":"1","name":"n"}`)); err == nil {
		t.Fatal("missing response Content-Type must break contract")
	}
}

func TestContract_UnknownRoute(t *testing.T) {
	v := load(t)
	resp := created("application/json", `{}`)
	resp.URL = "http://api.test/books"
	path, _, err := v.ValidateResponse(context.Background(), resp)
	if err == nil || path != "" {
		t.Fatalf("unknown route: path=%q err=%v", path, err)
	}
}

func TestOperationsAndCoverage(t *testing.T) {
	v := load(t)
	ops := contract.Operations(v.Doc())
	want := []contract.Operation{
		{Method: "POST", Path: "/users"},
		{Method: "DELETE", Path: "/users/{id}"},
		{Method: "GET", Path: "/users/{id}"},
	}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v", ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops[%d] = %s, want %s", i, ops[i], want[i])
		}
	}

	c := contract.NewCoverage()
	c.Add("get", "/users/{id}")
	c.Add("GET", "/users/{id}")
	c.Add("POST", "")
	if got := c.Covered(); len(got) != 1 || got[0].String() != "GET /users/{id}" {
		t.Fatalf("covered = %v", got)
	}
	if !c.Has(contract.Operation{Method: "GET", Path: "/users/{id}"}) || c.Has(want[0]) {
		t.Fatal("Has mismatch")
	}

	var nilCov *contract.Coverage
	nilCov.Add("GET", "/x")
	if nilCov.Covered() != nil {
		t.Fatal("nil coverage should be empty")
	}
}
