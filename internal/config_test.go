package internal_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/reimbursement-tracker/internal"
)

func validConfig() *internal.Config {
	return &internal.Config{
		Server: internal.ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: time.Second,
			ReadTimeout:       5 * time.Second,
		},
		Database: internal.DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 2,
			Source:       "postgres://localhost/reimbursements",
		},
		Security: internal.SecurityConfig{
			AccessTokenSecret:  "0123456789abcdef0123456789abcdef-access",
			RefreshTokenSecret: "0123456789abcdef0123456789abcdef-refresh",
			BCryptCost:         12,
		},
		Storage: internal.StorageConfig{
			Driver:        "local",
			Path:          "/tmp/receipts",
			PublicBaseURL: "http://localhost:8080/files",
		},
	}
}

var _ = Describe("Config", func() {
	It("should accept a complete configuration", func() {
		Expect(validConfig().Validate()).To(Succeed())
	})

	It("should collect errors from every section", func() {
		// Given
		cfg := validConfig()
		cfg.Database.MaxIdleConns = 50
		cfg.Security.AccessTokenSecret = "short"
		cfg.Storage.Driver = "s3"

		// When
		err := cfg.Validate()

		// Then
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("database config"))
		Expect(err.Error()).To(ContainSubstring("security config"))
		Expect(err.Error()).To(ContainSubstring("storage config"))
	})

	It("should reject identical token secrets", func() {
		cfg := validConfig()
		cfg.Security.RefreshTokenSecret = cfg.Security.AccessTokenSecret

		Expect(cfg.Validate()).To(MatchError(ContainSubstring("must differ")))
	})

	It("should default the upload limit to 10MB", func() {
		cfg := validConfig()

		Expect(cfg.Server.UploadLimit()).To(Equal(int64(10 << 20)))
		cfg.Server.MaxUploadSizeMB = 2
		Expect(cfg.Server.UploadLimit()).To(Equal(int64(2 << 20)))
	})

	Describe("LoadConfigFromEnv", func() {
		It("should read overrides from the environment", func() {
			GinkgoT().Setenv("HTTP_PORT", "9090")
			GinkgoT().Setenv("STORAGE_DRIVER", "bolt")
			GinkgoT().Setenv("JWT_ACCESS_TTL", "10m")

			cfg := internal.LoadConfigFromEnv()

			Expect(cfg.Server.Port).To(Equal(9090))
			Expect(cfg.Storage.Driver).To(Equal("bolt"))
			Expect(cfg.Security.AccessTokenDuration).To(Equal(10 * time.Minute))
			Expect(cfg.Reporting.TopUsers).To(Equal(10))
		})
	})
})
