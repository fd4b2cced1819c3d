// Package fakeapi serves an in-memory stand-in for the JSONPlaceholder /users
// resource. Writes are acknowledged the way the real service does but never
// persisted, so reads always return the seeded data.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// NextID is the id assigned to every created user.
const NextID = 11

func NewRouter() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{})
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", listUsers)
		r.Post("/", createUser)
		r.Get("/{id}", getUser)
		r.Put("/{id}", replaceUser)
		r.Patch("/{id}", patchUser)
		r.Delete("/{id}", deleteUser)
	})

	return r
}

func listUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	matched := []map[string]any{}
	for _, u := range users() {
		if matchesQuery(u, query) {
			matched = append(matched, u)
		}
	}

	writeJSON(w, http.StatusOK, matched)
}

func matchesQuery(u map[string]any, query map[string][]string) bool {
	for key, values := range query {
		value, ok := u[key]
		if !ok {
			return false
		}
		found := false
		for _, want := range values {
			if fmt.Sprint(value) == want {
				found = true

				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func getUser(w http.ResponseWriter, r *http.Request) {
	u, ok := lookup(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})

		return
	}

	writeJSON(w, http.StatusOK, u)
}

func createUser(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	body["id"] = NextID

	writeJSON(w, http.StatusCreated, body)
}

func replaceUser(w http.ResponseWriter, r *http.Request) {
	u, ok := lookup(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})

		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	body["id"] = u["id"]

	writeJSON(w, http.StatusOK, body)
}

func patchUser(w http.ResponseWriter, r *http.Request) {
	u, ok := lookup(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})

		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	for key, value := range body {
		if key == "id" {
			continue
		}
		u[key] = value
	}

	writeJSON(w, http.StatusOK, u)
}

func deleteUser(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{})
}

func lookup(r *http.Request) (map[string]any, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return nil, false
	}

	all := users()
	if id < 1 || id > len(all) {
		return nil, false
	}

	return all[id-1], true
}

func readBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body := map[string]any{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{})

		return nil, false
	}

	return body, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
