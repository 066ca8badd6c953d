package branch_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/audit"
	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/branch"
	branchPostgres "github.com/safepark/platform-core/internal/branch/postgres"
	auditDatamodel "github.com/safepark/platform-core/internal/core/datamodel/audit"
	"github.com/safepark/platform-core/internal/credential"
	"github.com/safepark/platform-core/internal/provisioning"
	provisioningPostgres "github.com/safepark/platform-core/internal/provisioning/postgres"
	"github.com/safepark/platform-core/internal/store"
	"github.com/safepark/platform-core/internal/store/storetest"
)

func TestBranch(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Branch Suite")
}

func rawRequest(body string) *branch.UpdateProfileRequest {
	var req branch.UpdateProfileRequest
	Expect(json.Unmarshal([]byte(body), &req)).To(Succeed())
	return &req
}

var _ = Describe("Branch profile", func() {
	var (
		db      *store.DB
		ctx     context.Context
		svc     *branch.Service
		result  *provisioning.Result
		hq      string
		north   string
		manager authz.Principal
	)

	principal := func(roles ...authz.Role) authz.Principal {
		return authz.Principal{
			UserID:       result.AdminUser.ID,
			TenantID:     result.Tenant.ID,
			HomeBranchID: hq,
			Roles:        authz.NewRoleSet(roles...),
		}
	}

	profileAudits := func() []auditDatamodel.Log {
		var logs []auditDatamodel.Log
		Expect(db.Gorm.Where("action = ?", audit.ActionBranchProfileUpdated).Find(&logs).Error).To(Succeed())
		return logs
	}

	BeforeEach(func() {
		var err error
		db, err = storetest.NewSQLite()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()

		var req provisioning.ProvisionRequest
		Expect(json.Unmarshal([]byte(`{
			"tenant": {"code": "acme", "name": "Acme"},
			"branch": {"code": "hq", "name": "HQ", "profile": {"city": "Jakarta", "slots": 40}},
			"extraBranches": [{"code": "north", "name": "North"}],
			"adminUser": {"fullName": "Ada", "email": "ada@acme.io", "password": "correct-horse"}
		}`), &req)).To(Succeed())
		payload, err := req.Validate(provisioning.PolicyTenantCreation)
		Expect(err).NotTo(HaveOccurred())

		provisioner := provisioning.NewProvisioner(credential.NewCodec(credential.Params{N: 1024, R: 8, P: 1}), clock.New(), slog.Default())
		Expect(provisioningPostgres.NewRepository(db.Gorm).WithinTx(ctx, func(tx provisioning.Repository) error {
			result, err = provisioner.Provision(ctx, tx, payload, provisioning.AuditContext{Action: audit.ActionTenantCreated})
			return err
		})).To(Succeed())
		hq = result.Branches[0].ID
		north = result.Branches[1].ID
		manager = principal(authz.RoleBranchManager)

		svc = branch.NewService(branchPostgres.NewBranchRepository(db.Gorm), clock.New(), slog.Default())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	Describe("GetProfile", func() {
		It("should let a super admin read any branch of the tenant", func() {
			b, err := svc.GetProfile(ctx, principal(authz.RoleSuperAdmin), north)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Code).To(Equal("north"))
		})

		It("should limit a branch manager to the home branch", func() {
			b, err := svc.GetProfile(ctx, manager, hq)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Profile).To(HaveKeyWithValue("city", "Jakarta"))

			_, err = svc.GetProfile(ctx, manager, north)
			Expect(internal.HasCode(err, internal.ErrCodeBranchScopeForbidden)).To(BeTrue())
		})

		It("should refuse operators", func() {
			_, err := svc.GetProfile(ctx, principal(authz.RoleOperator), hq)
			Expect(internal.HasCode(err, internal.ErrCodeInsufficientRole)).To(BeTrue())
		})

		It("should refuse other tenants before looking at roles", func() {
			outsider := principal(authz.RoleSuperAdmin, authz.RolePlatformAdmin)
			outsider.TenantID = "another-tenant"
			_, err := svc.GetProfile(ctx, outsider, hq)
			Expect(internal.HasCode(err, internal.ErrCodeCrossTenantForbidden)).To(BeTrue())
		})

		It("should report unknown branches", func() {
			_, err := svc.GetProfile(ctx, principal(authz.RoleSuperAdmin), "missing")
			Expect(internal.HasCode(err, internal.ErrCodeBranchNotFound)).To(BeTrue())
		})
	})

	Describe("UpdateProfile", func() {
		It("should shallow-merge the profile, rename and audit", func() {
			b, err := svc.UpdateProfile(ctx, manager, hq, rawRequest(`{"name":" Head Office ","profile":{"slots":55,"open":"24h"}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Name).To(Equal("Head Office"))
			Expect(b.Profile).To(HaveKeyWithValue("city", "Jakarta"))
			Expect(b.Profile).To(HaveKeyWithValue("open", "24h"))
			Expect(b.Profile).To(HaveKeyWithValue("slots", BeNumerically("==", 55)))

			reread, err := svc.GetProfile(ctx, manager, hq)
			Expect(err).NotTo(HaveOccurred())
			Expect(reread.Name).To(Equal("Head Office"))
			Expect(reread.Profile).To(HaveKeyWithValue("city", "Jakarta"))
			Expect(reread.Profile).To(HaveKeyWithValue("slots", BeNumerically("==", 55)))

			logs := profileAudits()
			Expect(logs).To(HaveLen(1))
			Expect(*logs[0].EntityID).To(Equal(hq))
			Expect(logs[0].Metadata).To(HaveKeyWithValue("previousName", "HQ"))
			Expect(logs[0].Metadata["changedKeys"]).To(ConsistOf("open", "slots"))
		})

		It("should keep the name when only the profile changes", func() {
			b, err := svc.UpdateProfile(ctx, manager, hq, rawRequest(`{"profile":{}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Name).To(Equal("HQ"))
		})

		DescribeTable("invalid updates",
			func(body string, code internal.ErrorCode) {
				_, err := svc.UpdateProfile(ctx, manager, hq, rawRequest(body))
				Expect(internal.HasCode(err, code)).To(BeTrue(), "got %v", err)
				Expect(profileAudits()).To(BeEmpty())
			},
			Entry("blank name", `{"name":"   "}`, internal.ErrCodeInvalidName),
			Entry("null name", `{"name":null}`, internal.ErrCodeInvalidName),
			Entry("numeric name", `{"name":7}`, internal.ErrCodeInvalidName),
			Entry("array profile", `{"profile":[]}`, internal.ErrCodeInvalidProfile),
			Entry("null profile", `{"profile":null}`, internal.ErrCodeInvalidProfile),
			Entry("string profile", `{"profile":"x"}`, internal.ErrCodeInvalidProfile),
		)

		It("should keep every key when updates race", func() {
			const writers = 8
			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					body := `{"profile":{"k` + strconv.Itoa(i) + `":` + strconv.Itoa(i) + `}}`
					_, err := svc.UpdateProfile(ctx, manager, hq, rawRequest(body))
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}

			b, err := svc.GetProfile(ctx, manager, hq)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Profile).To(HaveKeyWithValue("city", "Jakarta"))
			Expect(b.Profile).To(HaveKeyWithValue("slots", BeNumerically("==", 40)))
			for i := 0; i < writers; i++ {
				Expect(b.Profile).To(HaveKeyWithValue("k"+strconv.Itoa(i), BeNumerically("==", i)))
			}
			Expect(profileAudits()).To(HaveLen(writers))
		})

		It("should report unknown branches before validating the body", func() {
			_, err := svc.UpdateProfile(ctx, manager, "missing", rawRequest(`{"name":"   "}`))
			Expect(internal.HasCode(err, internal.ErrCodeBranchNotFound)).To(BeTrue())
		})

		It("should not write when scope is denied", func() {
			_, err := svc.UpdateProfile(ctx, manager, north, rawRequest(`{"name":"Mine"}`))
			Expect(internal.HasCode(err, internal.ErrCodeBranchScopeForbidden)).To(BeTrue())
			Expect(profileAudits()).To(BeEmpty())
		})
	})

	Describe("Handler", func() {
		var router http.Handler

		BeforeEach(func() {
			h := branch.NewHandler(svc)
			r := chi.NewRouter()
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					next.ServeHTTP(w, req.WithContext(authz.ContextWithPrincipal(req.Context(), manager)))
				})
			})
			r.Get("/branch-profile/{branchId}", h.GetProfile)
			r.Put("/branch-profile/{branchId}", h.UpdateProfile)
			router = r
		})

		It("should wrap the branch in the response", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/branch-profile/"+hq, nil))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var out map[string]map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed())
			Expect(out["branch"]).To(HaveKeyWithValue("id", hq))
		})

		It("should map scope denials to 403", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/branch-profile/"+north, strings.NewReader(`{"name":"x"}`)))
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(rec.Body.String()).To(ContainSubstring("branch_scope_forbidden"))
		})

		It("should map unknown branches to 404", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/branch-profile/nope", nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})
})
