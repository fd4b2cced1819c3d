package app

import (
	"encoding/json"
	"net/http"
)

// DefaultBaseURL is the public JSONPlaceholder service the users suite was
// written against.
const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

// UserFields are the top level fields of every user record.
var UserFields = []string{"id", "name", "username", "email", "address", "phone", "website", "company"}

// UsersSuite returns the contract cases for the /users resource.
func UsersSuite() Cases {
	return Cases{Cases: []Case{
		{
			Name:   "get every user by id",
			Method: MethodGet,
			Path:   "/users/{1-10}",
			Expect: Expectation{
				Status:      http.StatusOK,
				Fields:      UserFields,
				MatchPathID: true,
			},
		},
		{
			Name:   "user response structure",
			Method: MethodGet,
			Path:   "/users/1",
			Expect: Expectation{
				Status: http.StatusOK,
				Fields: UserFields,
				Types: map[string]Kind{
					"id":       KindInteger,
					"name":     KindString,
					"username": KindString,
					"email":    KindEmail,
					"address":  KindObject,
					"phone":    KindString,
					"website":  KindString,
					"company":  KindObject,
				},
			},
		},
		{
			Name:   "list users",
			Method: MethodGet,
			Path:   "/users",
			Expect: Expectation{
				Status: http.StatusOK,
				Count:  IntPtr(10),
				Fields: UserFields,
			},
		},
		{
			Name:   "filter users by id",
			Method: MethodGet,
			Path:   "/users?id=1",
			Expect: Expectation{
				Status: http.StatusOK,
				Count:  IntPtr(1),
				Values: map[string]json.RawMessage{"id": json.RawMessage(`1`)},
			},
		},
		{
			Name:   "create user",
			Method: MethodPost,
			Path:   "/users",
			Body:   json.RawMessage(`{"name":"Matt Jones","username":"mattj","email":"matt@example.com"}`),
			Expect: Expectation{
				Status:   http.StatusCreated,
				Fields:   []string{"id"},
				Types:    map[string]Kind{"id": KindInteger},
				EchoBody: true,
			},
		},
		{
			Name:   "create minimal user",
			Method: MethodPost,
			Path:   "/users",
			Body:   json.RawMessage(`{"name":"Test User","email":"test@example.com"}`),
			Expect: Expectation{
				Status: http.StatusCreated,
			},
		},
		{
			Name:   "replace user",
			Method: MethodPut,
			Path:   "/users/1",
			Body:   json.RawMessage(`{"id":1,"name":"Updated Name","username":"updated_username","email":"updated@example.com"}`),
			Expect: Expectation{
				Status:    http.StatusOK,
				EqualBody: true,
			},
		},
		{
			Name:   "partially update user",
			Method: MethodPatch,
			Path:   "/users/1",
			Body:   json.RawMessage(`{"name":"Partially Updated Name"}`),
			Expect: Expectation{
				Status:      http.StatusOK,
				EchoBody:    true,
				MatchPathID: true,
			},
		},
		{
			Name:   "delete user",
			Method: MethodDelete,
			Path:   "/users/1",
			Expect: Expectation{
				Status: http.StatusOK,
			},
		},
		{
			Name:   "unknown user",
			Method: MethodGet,
			Path:   "/users/999",
			Expect: Expectation{
				Status: http.StatusNotFound,
			},
		},
		{
			Name:   "unknown endpoint",
			Method: MethodGet,
			Path:   "/invalid-endpoint",
			Expect: Expectation{
				Status: http.StatusNotFound,
			},
		},
		{
			Name:   "repeated reads are identical",
			Method: MethodGet,
			Path:   "/users/1",
			Expect: Expectation{
				Status:     http.StatusOK,
				Idempotent: true,
			},
		},
	}}
}
