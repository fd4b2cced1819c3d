//nolint:revive,staticcheck // dot imports are standard for Ginkgo/Gomega test code
package e2e

import (
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/phux/apicheck/app"
)

// received fails the running test on transport errors and on bodies that are neither
// an object nor an array of objects.
func received(res *app.Response, err error) *app.Response {
	GinkgoHelper()

	Expect(err).NotTo(HaveOccurred())
	_, err = res.Shape()
	Expect(err).NotTo(HaveOccurred(), "body: %s", res.Body)

	return res
}

func expectStatus(res *app.Response, status int) *app.Response {
	GinkgoHelper()

	Expect(res.Status).To(Equal(status), "body: %s", res.Body)

	return res
}

func object(res *app.Response) map[string]any {
	GinkgoHelper()

	obj, err := res.Object()
	Expect(err).NotTo(HaveOccurred())

	return obj
}

func expectInt(value any, want int) {
	GinkgoHelper()

	Expect(app.IsType(value, app.KindInteger)).To(BeTrue(), "not an integer: %v", value)
	Expect(fmt.Sprint(value)).To(Equal(fmt.Sprint(want)))
}

var _ = Describe("Users resource", func() {
	Describe("reading", func() {
		DescribeTable("a single user",
			func(id int) {
				res := expectStatus(received(rc.Get(ctx, fmt.Sprintf("/users/%d", id))), http.StatusOK)

				Expect(res.OK()).To(BeTrue())
				user := object(res)
				Expect(app.HasFields(user, app.UserFields)).To(BeEmpty())
				expectInt(user["id"], id)
			},
			func(id int) string { return fmt.Sprintf("/users/%d", id) },
			Entry(nil, 1), Entry(nil, 2), Entry(nil, 3), Entry(nil, 4), Entry(nil, 5),
			Entry(nil, 6), Entry(nil, 7), Entry(nil, 8), Entry(nil, 9), Entry(nil, 10),
		)

		It("describes a user with typed fields", func() {
			user := object(expectStatus(received(rc.Get(ctx, "/users/1")), http.StatusOK))

			Expect(app.IsType(user["id"], app.KindInteger)).To(BeTrue())
			Expect(app.IsType(user["name"], app.KindString)).To(BeTrue())
			Expect(app.IsType(user["email"], app.KindEmail)).To(BeTrue())
			Expect(app.IsType(user["address"], app.KindObject)).To(BeTrue())
			Expect(app.IsType(user["company"], app.KindObject)).To(BeTrue())
		})

		It("lists ten users", func() {
			users, err := expectStatus(received(rc.Get(ctx, "/users")), http.StatusOK).Objects()

			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(10))
		})

		It("filters users by id", func() {
			users, err := expectStatus(received(rc.Get(ctx, "/users?id=1")), http.StatusOK).Objects()

			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
			expectInt(users[0]["id"], 1)
		})

		It("returns 404 for an unknown user", func() {
			res := received(rc.Get(ctx, "/users/999"))

			Expect(res.Status).To(Equal(http.StatusNotFound))
			Expect(app.IsSuccess(res.Status)).To(BeFalse())
		})

		It("returns 404 for an unknown endpoint", func() {
			expectStatus(received(rc.Get(ctx, "/invalid-endpoint")), http.StatusNotFound)
		})

		It("returns identical bodies for repeated reads", func() {
			first := expectStatus(received(rc.Get(ctx, "/users/1")), http.StatusOK)
			second := expectStatus(received(rc.Get(ctx, "/users/1")), http.StatusOK)

			Expect(second.Body).To(Equal(first.Body))
		})
	})

	Describe("writing", func() {
		It("creates a user with a server assigned id", func() {
			submitted := map[string]any{"name": "Matt Jones", "username": "mattj", "email": "matt@example.com"}

			created := object(expectStatus(received(rc.Post(ctx, "/users", submitted)), http.StatusCreated))

			Expect(app.HasFields(created, []string{"id"})).To(BeEmpty())
			Expect(app.IsType(created["id"], app.KindInteger)).To(BeTrue())
			diff, err := app.Contains(created, submitted)
			Expect(err).NotTo(HaveOccurred())
			Expect(diff).To(BeEmpty())
		})

		It("creates a minimal user", func() {
			expectStatus(received(rc.Post(ctx, "/users", map[string]any{"name": "Test User", "email": "test@example.com"})), http.StatusCreated)
		})

		It("replaces a user", func() {
			submitted := map[string]any{
				"id":       1,
				"name":     "Updated Name",
				"username": "updated_username",
				"email":    "updated@example.com",
			}

			res := expectStatus(received(rc.Put(ctx, "/users/1", submitted)), http.StatusOK)

			diff, err := app.DiffJSON(submitted, res.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(diff).To(BeEmpty())
		})

		It("partially updates a user", func() {
			user := object(expectStatus(received(rc.Patch(ctx, "/users/1", map[string]any{"name": "Partially Updated Name"})), http.StatusOK))

			Expect(user["name"]).To(Equal("Partially Updated Name"))
			expectInt(user["id"], 1)
		})

		It("deletes a user", func() {
			expectStatus(received(rc.Delete(ctx, "/users/1")), http.StatusOK)
		})
	})

	Describe("the built-in suite", func() {
		It("reports no findings", func() {
			a := app.NewApp(rc, app.NewURLParser(), nil, nil)
			a.AddCases(app.UsersSuite())

			Expect(a.Run(ctx)).To(Succeed())
			Expect(a.Results.Findings).To(BeEmpty())
		})
	})
})
