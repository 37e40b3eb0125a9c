package dal_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/matchengine/internal/database"
	"github.com/jordigilh/matchengine/pkg/matchengine/dal"
)

var _ = Describe("ConnectionPool", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)
	})

	Describe("NewConnectionPool", func() {
		Context("with a nil configuration", func() {
			It("should return an error", func() {
				pool, err := dal.NewConnectionPool(nil, dal.ANNConfig{}, logger)
				Expect(err).To(HaveOccurred())
				Expect(pool).To(BeNil())
			})
		})

		Context("with an invalid configuration", func() {
			It("should return an error without opening a connection", func() {
				config := &database.Config{Host: ""}

				pool, err := dal.NewConnectionPool(config, dal.ANNConfig{}, logger)
				Expect(err).To(HaveOccurred())
				Expect(pool).To(BeNil())
			})
		})
	})

	Describe("Connection Statistics", func() {
		Context("when the pool has not been built", func() {
			It("should report unavailable stats", func() {
				stats := &dal.ConnectionStats{Available: false}
				Expect(stats.Available).To(BeFalse())
			})
		})

		Context("when the pool is healthy", func() {
			It("should have the expected structure", func() {
				stats := &dal.ConnectionStats{
					Available:          true,
					MaxOpenConnections: 25,
					OpenConnections:    5,
					InUse:              2,
					Idle:               3,
					IsHealthy:          true,
					LastHealthCheck:    time.Now(),
				}

				Expect(stats.Available).To(BeTrue())
				Expect(stats.MaxOpenConnections).To(Equal(25))
				Expect(stats.InUse).To(Equal(2))
				Expect(stats.Idle).To(Equal(3))
				Expect(stats.IsHealthy).To(BeTrue())
			})
		})
	})

	Describe("Configuration edge cases", func() {
		It("should reject an empty host", func() {
			config := database.DefaultConfig()
			config.Host = ""

			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should accept extreme but valid connection limits", func() {
			config := database.DefaultConfig()
			config.MaxOpenConns = 1000
			config.MaxIdleConns = 500

			Expect(config.Validate()).NotTo(HaveOccurred())
		})
	})
})
