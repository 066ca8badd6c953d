package install_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/audit"
	auditDatamodel "github.com/safepark/platform-core/internal/core/datamodel/audit"
	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	userDatamodel "github.com/safepark/platform-core/internal/core/datamodel/user"
	"github.com/safepark/platform-core/internal/credential"
	"github.com/safepark/platform-core/internal/install"
	installPostgres "github.com/safepark/platform-core/internal/install/postgres"
	"github.com/safepark/platform-core/internal/provisioning"
	"github.com/safepark/platform-core/internal/store"
	"github.com/safepark/platform-core/internal/store/storetest"
)

func TestInstall(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Install Suite")
}

func installBody(tenantCode string) string {
	return fmt.Sprintf(`{
		"tenant": {"code": %q, "name": "Acme Parking"},
		"branch": {"code": "hq", "name": "Headquarters"},
		"adminUser": {"fullName": "Ada Admin", "email": "ada@example.com", "password": "s3cret-pass", "roles": ["operator"]}
	}`, tenantCode)
}

func provisionRequest(body string) *provisioning.ProvisionRequest {
	var req provisioning.ProvisionRequest
	Expect(json.Unmarshal([]byte(body), &req)).To(Succeed())
	return &req
}

var _ = Describe("Install Service", func() {
	var (
		db     *store.DB
		ctx    context.Context
		newSvc func(opts ...install.Option) *install.Service
	)

	countRows := func(model interface{}) int64 {
		var n int64
		Expect(db.Gorm.Model(model).Count(&n).Error).To(Succeed())
		return n
	}

	BeforeEach(func() {
		var err error
		db, err = storetest.NewSQLite()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()

		repo := installPostgres.NewRepository(db.Gorm)
		provisioner := provisioning.NewProvisioner(credential.NewCodec(credential.Params{N: 1024, R: 8, P: 1}), clock.New(), slog.Default())
		newSvc = func(opts ...install.Option) *install.Service {
			return install.NewService(repo, provisioner, slog.Default(), opts...)
		}
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	It("should start not installed", func() {
		status, err := newSvc().Status(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Installed).To(BeFalse())
	})

	It("should provision the first tenant with the fixed install roles", func() {
		svc := newSvc()
		result, err := svc.Install(ctx, "", provisionRequest(installBody("acme")))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Installed).To(BeTrue())
		Expect(result.AdminUser.Roles).To(ConsistOf("platform_admin", "super_admin"))

		state, err := svc.State(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.Installed).To(BeTrue())
		Expect(state.InstalledAt).NotTo(BeNil())
		Expect(state.InstalledTenantID).To(Equal(result.Tenant.ID))
		Expect(state.InstalledBranchID).To(Equal(result.Branch.ID))
		Expect(state.InstalledUserID).To(Equal(result.AdminUser.ID))

		var logs []auditDatamodel.Log
		Expect(db.Gorm.Find(&logs).Error).To(Succeed())
		Expect(logs).To(HaveLen(1))
		Expect(logs[0].Action).To(Equal(audit.ActionInstallCompleted))
	})

	It("should refuse a second install without side effects", func() {
		svc := newSvc()
		_, err := svc.Install(ctx, "", provisionRequest(installBody("acme")))
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.Install(ctx, "", provisionRequest(installBody("other")))
		Expect(internal.HasCode(err, internal.ErrCodeAlreadyInstalled)).To(BeTrue())
		Expect(countRows(&tenantDatamodel.Tenant{})).To(Equal(int64(1)))
	})

	It("should check the install key when one is configured", func() {
		svc := newSvc(install.WithInstallKey("open-sesame"))

		_, err := svc.Install(ctx, "", provisionRequest(installBody("acme")))
		Expect(internal.HasCode(err, internal.ErrCodeInvalidInstallKey)).To(BeTrue())
		_, err = svc.Install(ctx, "open-sesam", provisionRequest(installBody("acme")))
		Expect(internal.HasCode(err, internal.ErrCodeInvalidInstallKey)).To(BeTrue())

		_, err = svc.Install(ctx, "open-sesame", provisionRequest(installBody("acme")))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should stay not installed after an invalid payload", func() {
		svc := newSvc()
		_, err := svc.Install(ctx, "", provisionRequest(`{"tenant":{"code":"a","name":"A"}}`))
		Expect(internal.HasCode(err, internal.ErrCodeBranchRequired)).To(BeTrue())

		installed, err := svc.IsInstalled(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(installed).To(BeFalse())
	})

	It("should roll back the state flip when provisioning fails", func() {
		Expect(db.Gorm.Where(`"key" = ?`, "platform_admin").Delete(&userDatamodel.Role{}).Error).To(Succeed())

		svc := newSvc()
		_, err := svc.Install(ctx, "", provisionRequest(installBody("acme")))
		Expect(internal.HasCode(err, internal.ErrCodeRoleNotSeeded)).To(BeTrue())

		installed, err := svc.IsInstalled(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(installed).To(BeFalse())
		Expect(countRows(&tenantDatamodel.Tenant{})).To(BeZero())
		Expect(countRows(&auditDatamodel.Log{})).To(BeZero())
	})

	// SQLite serialises these on its single connection. The row lock itself
	// is covered by the integration-tagged suite in install/postgres.
	It("should let exactly one of many concurrent installs succeed", func() {
		svc := newSvc()
		const attempts = 6

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			rejected  int
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := svc.Install(ctx, "", provisionRequest(installBody(fmt.Sprintf("tenant-%d", i))))
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
					return
				}
				if internal.HasCode(err, internal.ErrCodeAlreadyInstalled) {
					rejected++
				}
			}(i)
		}
		wg.Wait()

		Expect(successes).To(Equal(1))
		Expect(rejected).To(Equal(attempts - 1))
		Expect(countRows(&tenantDatamodel.Tenant{})).To(Equal(int64(1)))
	})
})

var _ = Describe("Install Handler", func() {
	var (
		db      *store.DB
		handler *install.Handler
	)

	do := func(method string, h http.HandlerFunc, body string, header map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/", bytes.NewBufferString(body))
		for k, v := range header {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var out map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed())
		return out
	}

	BeforeEach(func() {
		var err error
		db, err = storetest.NewSQLite()
		Expect(err).NotTo(HaveOccurred())
		provisioner := provisioning.NewProvisioner(credential.NewCodec(credential.Params{N: 1024, R: 8, P: 1}), clock.New(), slog.Default())
		svc := install.NewService(installPostgres.NewRepository(db.Gorm), provisioner, slog.Default(),
			install.WithInstallKey("k3y"))
		handler = install.NewHandler(svc)
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	It("should report status", func() {
		rec := do(http.MethodGet, handler.Status, "", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decode(rec)).To(Equal(map[string]interface{}{"installed": false}))
	})

	It("should prefer the header key over the body key", func() {
		body := `{"installKey":"k3y",` + installBody("acme")[1:]
		rec := do(http.MethodPost, handler.Install, body, map[string]string{install.HeaderInstallKey: "wrong"})
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(decode(rec)).To(HaveKeyWithValue("code", "invalid_install_key"))
	})

	It("should accept the body key and answer 201", func() {
		body := `{"installKey":"k3y",` + installBody("acme")[1:]
		rec := do(http.MethodPost, handler.Install, body, nil)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		out := decode(rec)
		Expect(out).To(HaveKeyWithValue("installed", true))
		Expect(out).To(HaveKey("tenant"))
		Expect(out).To(HaveKey("adminUser"))
		Expect(out["adminUser"]).NotTo(HaveKey("passwordCredential"))
	})

	It("should reject malformed JSON", func() {
		rec := do(http.MethodPost, handler.Install, `{"tenant":`, map[string]string{install.HeaderInstallKey: "k3y"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(decode(rec)).To(HaveKeyWithValue("code", "invalid_json"))
	})

	It("should answer 410 on the retired bootstrap endpoint", func() {
		rec := do(http.MethodPost, handler.Bootstrap, "", nil)
		Expect(rec.Code).To(Equal(http.StatusGone))
		Expect(decode(rec)).To(HaveKeyWithValue("code", "bootstrap_deprecated"))
	})
})
