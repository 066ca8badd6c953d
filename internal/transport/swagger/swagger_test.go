package swagger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/safepark/platform-core/api"
	"github.com/safepark/platform-core/internal/transport/swagger"
)

func TestSwagger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Swagger Suite")
}

var _ = Describe("OpenAPI document", func() {
	It("loads and validates the embedded description", func() {
		doc, err := swagger.Load(context.Background(), api.OpenAPISpec)
		Expect(err).NotTo(HaveOccurred())

		for _, path := range []string{
			"/setup/status", "/setup/install", "/setup/bootstrap", "/tenants",
			"/auth/login", "/auth/me", "/branch-profile/{branchId}",
		} {
			Expect(doc.T.Paths.Find(path)).NotTo(BeNil(), path)
		}
	})

	It("rejects an invalid description", func() {
		_, err := swagger.Load(context.Background(), []byte("openapi: 3.0.3\ninfo: {}\npaths: {}\n"))
		Expect(err).To(HaveOccurred())
	})

	It("serves the document as JSON", func() {
		doc, err := swagger.Load(context.Background(), api.OpenAPISpec)
		Expect(err).NotTo(HaveOccurred())

		rec := httptest.NewRecorder()
		doc.ServeJSON(rec, httptest.NewRequest(http.MethodGet, swagger.SpecJSONPath, nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		var body map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("openapi", "3.0.3"))
	})
})
