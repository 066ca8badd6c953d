package provisioning_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/audit"
	"github.com/safepark/platform-core/internal/authz"
	auditDatamodel "github.com/safepark/platform-core/internal/core/datamodel/audit"
	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	userDatamodel "github.com/safepark/platform-core/internal/core/datamodel/user"
	"github.com/safepark/platform-core/internal/core/events"
	"github.com/safepark/platform-core/internal/credential"
	"github.com/safepark/platform-core/internal/provisioning"
	provisioningPostgres "github.com/safepark/platform-core/internal/provisioning/postgres"
	"github.com/safepark/platform-core/internal/store"
	"github.com/safepark/platform-core/internal/store/storetest"
)

func TestProvisioning(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Provisioning Suite")
}

var testParams = credential.Params{N: 1024, R: 8, P: 1}

func request(body string) *provisioning.ProvisionRequest {
	var req provisioning.ProvisionRequest
	Expect(json.Unmarshal([]byte(body), &req)).To(Succeed())
	return &req
}

const validBody = `{
	"tenant": {"code": " ACME ", "name": " Acme Parking "},
	"branch": {"code": "HQ", "name": "Headquarters", "profile": {"city": "Jakarta"}},
	"extraBranches": [{"code": "north", "name": "North Lot"}],
	"adminUser": {"fullName": "Ada Admin", "email": " Ada@Example.COM ", "password": "s3cret-pass"}
}`

type installedGate bool

func (g installedGate) IsInstalled(context.Context) (bool, error) {
	return bool(g), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

var _ = Describe("ProvisionRequest", func() {
	It("should normalise codes, names and email", func() {
		payload, err := request(validBody).Validate(provisioning.PolicyTenantCreation)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Tenant.Code).To(Equal("acme"))
		Expect(payload.Tenant.Name).To(Equal("Acme Parking"))
		Expect(payload.Branch.Code).To(Equal("hq"))
		Expect(payload.Branch.Profile).To(HaveKeyWithValue("city", "Jakarta"))
		Expect(payload.ExtraBranches).To(HaveLen(1))
		Expect(payload.ExtraBranches[0].Profile).To(BeEmpty())
		Expect(payload.AdminUser.Email).To(Equal("ada@example.com"))
		Expect(payload.BranchCodes()).To(Equal([]string{"hq", "north"}))
	})

	It("should default tenant admins to super_admin", func() {
		payload, err := request(validBody).Validate(provisioning.PolicyTenantCreation)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.AdminUser.Roles.Keys()).To(Equal([]string{"super_admin"}))
	})

	It("should grant the fixed install roles whatever was requested", func() {
		body := `{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},
			"adminUser":{"fullName":"F","email":"e@x.io","password":"password1","roles":5}}`
		payload, err := request(body).Validate(provisioning.PolicyInstall)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.AdminUser.Roles.Keys()).To(ConsistOf("platform_admin", "super_admin"))
	})

	It("should accept an assignable subset of roles", func() {
		body := `{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},
			"adminUser":{"fullName":"F","email":"e@x.io","password":"password1","roles":["operator","branch_manager","operator"]}}`
		payload, err := request(body).Validate(provisioning.PolicyTenantCreation)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.AdminUser.Roles.Keys()).To(Equal([]string{"branch_manager", "operator"}))
	})

	It("should accept role keys regardless of case and padding", func() {
		body := `{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},
			"adminUser":{"fullName":"F","email":"e@x.io","password":"password1","roles":["Operator"," BRANCH_MANAGER "]}}`
		payload, err := request(body).Validate(provisioning.PolicyTenantCreation)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.AdminUser.Roles.Keys()).To(Equal([]string{"branch_manager", "operator"}))
	})

	It("should reject repeated branch codes as a validation error", func() {
		body := `{"tenant":{"code":"acme","name":"Acme"},"branch":{"code":"hq","name":"HQ"},
			"extraBranches":[{"code":"north","name":"North"},{"code":"HQ ","name":"Again"}],
			"adminUser":{"fullName":"F","email":"e@x.io","password":"password1"}}`
		_, err := request(body).Validate(provisioning.PolicyTenantCreation)
		Expect(internal.HasCode(err, internal.ErrCodeDuplicateBranchCode)).To(BeTrue())

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(400))
		Expect(appErr.Details).To(HaveKeyWithValue("code", "hq"))
	})

	DescribeTable("rejected payloads",
		func(body string, code internal.ErrorCode) {
			_, err := request(body).Validate(provisioning.PolicyTenantCreation)
			Expect(err).To(HaveOccurred())
			Expect(internal.HasCode(err, code)).To(BeTrue(), "got %v", err)
		},
		Entry("no tenant", `{"branch":{"code":"b","name":"B"},"adminUser":{}}`, internal.ErrCodeTenantRequired),
		Entry("tenant not an object", `{"tenant":"acme","branch":{},"adminUser":{}}`, internal.ErrCodeTenantRequired),
		Entry("no branch", `{"tenant":{},"adminUser":{}}`, internal.ErrCodeBranchRequired),
		Entry("no admin", `{"tenant":{},"branch":{}}`, internal.ErrCodeAdminRequired),
		Entry("blank tenant name",
			`{"tenant":{"code":"a","name":"  "},"branch":{"code":"b","name":"B"},"adminUser":{"fullName":"F","email":"e@x.io","password":"short"}}`,
			internal.ErrCodeMissingFields),
		Entry("short password",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},"adminUser":{"fullName":"F","email":"e@x.io","password":"short"}}`,
			internal.ErrCodeWeakPassword),
		Entry("profile not an object",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B","profile":[]},"adminUser":{"fullName":"F","email":"e@x.io","password":"password1"}}`,
			internal.ErrCodeInvalidProfile),
		Entry("extra branches not an array",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},"extraBranches":{},"adminUser":{"fullName":"F","email":"e@x.io","password":"password1"}}`,
			internal.ErrCodeInvalidExtraBranches),
		Entry("extra branch not an object",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},"extraBranches":[1],"adminUser":{"fullName":"F","email":"e@x.io","password":"password1"}}`,
			internal.ErrCodeInvalidExtraBranch),
		Entry("extra branch without name",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},"extraBranches":[{"code":"c"}],"adminUser":{"fullName":"F","email":"e@x.io","password":"password1"}}`,
			internal.ErrCodeMissingExtraBranchFields),
		Entry("extra branch profile not an object",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},"extraBranches":[{"code":"c","name":"C","profile":"x"}],"adminUser":{"fullName":"F","email":"e@x.io","password":"password1"}}`,
			internal.ErrCodeInvalidProfile),
		Entry("empty roles",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},"adminUser":{"fullName":"F","email":"e@x.io","password":"password1","roles":[]}}`,
			internal.ErrCodeInvalidAdminRoles),
		Entry("roles not an array",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},"adminUser":{"fullName":"F","email":"e@x.io","password":"password1","roles":"operator"}}`,
			internal.ErrCodeInvalidAdminRoles),
		Entry("platform_admin requested",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},"adminUser":{"fullName":"F","email":"e@x.io","password":"password1","roles":["platform_admin"]}}`,
			internal.ErrCodeInvalidAdminRole),
		Entry("unknown role",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},"adminUser":{"fullName":"F","email":"e@x.io","password":"password1","roles":["janitor"]}}`,
			internal.ErrCodeInvalidAdminRole),
		Entry("non-string role",
			`{"tenant":{"code":"a","name":"A"},"branch":{"code":"b","name":"B"},"adminUser":{"fullName":"F","email":"e@x.io","password":"password1","roles":[3]}}`,
			internal.ErrCodeInvalidAdminRole),
	)
})

var _ = Describe("Provisioner", func() {
	var (
		db          *store.DB
		ctx         context.Context
		repo        *provisioningPostgres.Repository
		provisioner *provisioning.Provisioner
		mockClock   *clock.Mock
	)

	countRows := func(model interface{}) int64 {
		var n int64
		Expect(db.Gorm.Model(model).Count(&n).Error).To(Succeed())
		return n
	}

	provision := func(body string) (*provisioning.Result, error) {
		payload, err := request(body).Validate(provisioning.PolicyTenantCreation)
		Expect(err).NotTo(HaveOccurred())
		var result *provisioning.Result
		err = repo.WithinTx(ctx, func(tx provisioning.Repository) error {
			var txErr error
			result, txErr = provisioner.Provision(ctx, tx, payload, provisioning.AuditContext{Action: audit.ActionTenantCreated})
			return txErr
		})
		return result, err
	}

	BeforeEach(func() {
		var err error
		db, err = storetest.NewSQLite()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
		repo = provisioningPostgres.NewRepository(db.Gorm)
		mockClock = clock.NewMock()
		mockClock.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
		provisioner = provisioning.NewProvisioner(credential.NewCodec(testParams), mockClock, slog.Default())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	It("should create tenant, branches, admin, grants and one audit entry", func() {
		result, err := provision(validBody)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Tenant.Code).To(Equal("acme"))
		Expect(result.Tenant.CreatedAt).To(BeTemporally("==", mockClock.Now()))
		Expect(result.Branches).To(HaveLen(2))
		Expect(result.Branch.Code).To(Equal("hq"))
		Expect(result.Branches[1].Code).To(Equal("north"))
		Expect(result.AdminUser.BranchID).To(Equal(result.Branch.ID))
		Expect(result.AdminUser.IsActive).To(BeTrue())
		Expect(result.AdminUser.Roles).To(Equal([]string{"super_admin"}))

		var user userDatamodel.User
		Expect(db.Gorm.First(&user, "id = ?", result.AdminUser.ID).Error).To(Succeed())
		Expect(credential.NewCodec(testParams).Verify("s3cret-pass", user.PasswordCredential)).To(BeTrue())

		Expect(countRows(&userDatamodel.UserRole{})).To(Equal(int64(1)))

		var logs []auditDatamodel.Log
		Expect(db.Gorm.Find(&logs).Error).To(Succeed())
		Expect(logs).To(HaveLen(1))
		Expect(logs[0].Action).To(Equal(audit.ActionTenantCreated))
		Expect(*logs[0].EntityID).To(Equal(result.Tenant.ID))
		Expect(logs[0].Metadata).To(HaveKeyWithValue("tenantCode", "acme"))
		Expect(logs[0].Metadata).To(HaveKeyWithValue("actor", "system"))
	})

	It("should reject a taken tenant code and leave nothing behind", func() {
		_, err := provision(validBody)
		Expect(err).NotTo(HaveOccurred())

		_, err = provision(validBody)
		Expect(internal.HasCode(err, internal.ErrCodeTenantCodeExists)).To(BeTrue())
		Expect(countRows(&tenantDatamodel.Tenant{})).To(Equal(int64(1)))
		Expect(countRows(&tenantDatamodel.Branch{})).To(Equal(int64(2)))
		Expect(countRows(&userDatamodel.User{})).To(Equal(int64(1)))
		Expect(countRows(&userDatamodel.UserRole{})).To(Equal(int64(1)))
		Expect(countRows(&auditDatamodel.Log{})).To(Equal(int64(1)))
	})

	It("should allow the same branch code in different tenants", func() {
		_, err := provision(validBody)
		Expect(err).NotTo(HaveOccurred())
		body := `{"tenant":{"code":"other","name":"Other"},"branch":{"code":"hq","name":"HQ"},
			"adminUser":{"fullName":"F","email":"ada@example.com","password":"password1"}}`
		_, err = provision(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(countRows(&tenantDatamodel.Tenant{})).To(Equal(int64(2)))
	})

	It("should roll back when a granted role is missing from the catalog", func() {
		Expect(db.Gorm.Where(`"key" = ?`, "operator").Delete(&userDatamodel.Role{}).Error).To(Succeed())

		body := `{"tenant":{"code":"acme","name":"Acme"},"branch":{"code":"hq","name":"HQ"},
			"adminUser":{"fullName":"F","email":"e@x.io","password":"password1","roles":["super_admin","operator"]}}`
		_, err := provision(body)
		Expect(internal.HasCode(err, internal.ErrCodeRoleNotSeeded)).To(BeTrue())

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(500))

		Expect(countRows(&tenantDatamodel.Tenant{})).To(BeZero())
		Expect(countRows(&userDatamodel.User{})).To(BeZero())
		Expect(countRows(&userDatamodel.UserRole{})).To(BeZero())
		Expect(countRows(&auditDatamodel.Log{})).To(BeZero())
	})
})

var _ = Describe("Service.CreateTenant", func() {
	var (
		db        *store.DB
		ctx       context.Context
		publisher *recordingPublisher
		newSvc    func(installed bool) *provisioning.Service
		admin     authz.Principal
	)

	BeforeEach(func() {
		var err error
		db, err = storetest.NewSQLite()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
		publisher = &recordingPublisher{}
		repo := provisioningPostgres.NewRepository(db.Gorm)
		provisioner := provisioning.NewProvisioner(credential.NewCodec(testParams), clock.New(), slog.Default())
		newSvc = func(installed bool) *provisioning.Service {
			return provisioning.NewService(repo, provisioner, installedGate(installed), publisher, slog.Default())
		}
		admin = authz.Principal{
			UserID:   "u-1",
			TenantID: "t-1",
			Roles:    authz.NewRoleSet(authz.RolePlatformAdmin, authz.RoleSuperAdmin),
		}
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	It("should require platform_admin", func() {
		actor := admin
		actor.Roles = authz.NewRoleSet(authz.RoleSuperAdmin)
		_, err := newSvc(true).CreateTenant(ctx, actor, request(validBody))
		Expect(internal.HasCode(err, internal.ErrCodeInsufficientRole)).To(BeTrue())
	})

	It("should require a completed install", func() {
		_, err := newSvc(false).CreateTenant(ctx, admin, request(validBody))
		Expect(internal.HasCode(err, internal.ErrCodeInstallRequired)).To(BeTrue())
	})

	It("should record the actor and publish the provisioned event", func() {
		result, err := newSvc(true).CreateTenant(ctx, admin, request(validBody))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Tenant.Code).To(Equal("acme"))

		var logs []auditDatamodel.Log
		Expect(db.Gorm.Find(&logs).Error).To(Succeed())
		Expect(logs).To(HaveLen(1))
		Expect(*logs[0].UserID).To(Equal("u-1"))
		Expect(logs[0].Metadata).To(HaveKeyWithValue("actorTenantId", "t-1"))

		Expect(publisher.events).To(HaveLen(1))
		Expect(publisher.events[0].EventType()).To(Equal(events.EventTypeTenantProvisioned))
	})
})
