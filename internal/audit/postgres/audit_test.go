package postgres_test

import (
	"context"
	"testing"

	"github.com/safepark/platform-core/internal/audit"
	auditPostgres "github.com/safepark/platform-core/internal/audit/postgres"
	auditDatamodel "github.com/safepark/platform-core/internal/core/datamodel/audit"
	"github.com/safepark/platform-core/internal/store"
	"github.com/safepark/platform-core/internal/store/storetest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestAuditPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Postgres Suite")
}

var _ = Describe("Audit Emitter", func() {
	var (
		db  *store.DB
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = storetest.NewSQLite()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	It("should append an entry with metadata", func() {
		emitter := auditPostgres.NewEmitter(db.Gorm)
		err := emitter.Record(ctx, audit.Entry{
			TenantID:   "t1",
			Action:     audit.ActionTenantCreated,
			EntityType: audit.EntityTenant,
			EntityID:   "t1",
			Metadata:   map[string]interface{}{"tenantCode": "acme"},
		})
		Expect(err).NotTo(HaveOccurred())

		var rows []auditDatamodel.Log
		Expect(db.Gorm.Find(&rows).Error).To(Succeed())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Action).To(Equal("tenant.created"))
		Expect(*rows[0].TenantID).To(Equal("t1"))
		Expect(rows[0].BranchID).To(BeNil())
		Expect(rows[0].Metadata).To(HaveKeyWithValue("tenantCode", "acme"))
		Expect(rows[0].CreatedAt).NotTo(BeZero())
	})

	It("should default missing metadata to an empty document", func() {
		emitter := auditPostgres.NewEmitter(db.Gorm)
		Expect(emitter.Record(ctx, audit.Entry{Action: audit.ActionLoginFailed})).To(Succeed())

		var row auditDatamodel.Log
		Expect(db.Gorm.First(&row).Error).To(Succeed())
		Expect(row.Metadata).NotTo(BeNil())
		Expect(row.Metadata).To(BeEmpty())
	})

	It("should replace values that cannot be encoded", func() {
		emitter := auditPostgres.NewEmitter(db.Gorm)
		err := emitter.Record(ctx, audit.Entry{
			Action:   audit.ActionLoginFailed,
			Metadata: map[string]interface{}{"ch": make(chan int), "ok": 1},
		})
		Expect(err).NotTo(HaveOccurred())

		var row auditDatamodel.Log
		Expect(db.Gorm.First(&row).Error).To(Succeed())
		Expect(row.Metadata).To(HaveKeyWithValue("ch", "[unserializable]"))
	})

	It("should leave nothing behind when the enclosing transaction rolls back", func() {
		err := db.Gorm.Transaction(func(tx *gorm.DB) error {
			if err := auditPostgres.NewEmitter(tx).Record(ctx, audit.Entry{Action: audit.ActionTenantCreated}); err != nil {
				return err
			}
			return gorm.ErrInvalidTransaction
		})
		Expect(err).To(HaveOccurred())

		var count int64
		Expect(db.Gorm.Model(&auditDatamodel.Log{}).Count(&count).Error).To(Succeed())
		Expect(count).To(BeZero())
	})
})
