package errors

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Structured Errors", func() {
	Describe("AppError", func() {
		Context("basic error creation", func() {
			It("should create error with correct properties", func() {
				err := New(KindValidation, "test message")

				Expect(err.Kind).To(Equal(KindValidation))
				Expect(err.Message).To(Equal("test message"))
				Expect(err.Details).To(BeEmpty())
				Expect(err.Cause).To(BeNil())
			})

			It("should implement error interface correctly", func() {
				err := New(KindValidation, "test message")

				Expect(err.Error()).To(Equal("validation: test message"))
			})

			It("should include details in error string when present", func() {
				err := New(KindValidation, "test message").WithDetails("extra info")

				Expect(err.Error()).To(Equal("validation: test message (extra info)"))
			})
		})

		Context("error wrapping", func() {
			It("should wrap underlying error", func() {
				originalErr := errors.New("original error")
				wrappedErr := Wrap(originalErr, KindFatalDB, "operation failed")

				Expect(wrappedErr.Kind).To(Equal(KindFatalDB))
				Expect(wrappedErr.Message).To(Equal("operation failed"))
				Expect(wrappedErr.Cause).To(Equal(originalErr))
				Expect(wrappedErr.Unwrap()).To(Equal(originalErr))
			})

			It("should format wrapped error with arguments", func() {
				originalErr := errors.New("connection refused")
				wrappedErr := Wrapf(originalErr, KindTransientDB, "failed to connect to %s:%d", "localhost", 5432)

				Expect(wrappedErr.Message).To(Equal("failed to connect to localhost:5432"))
				Expect(wrappedErr.Cause).To(Equal(originalErr))
			})
		})

		Context("adding details", func() {
			It("should add details to existing error", func() {
				err := New(KindCancelled, "operation cancelled")
				detailedErr := err.WithDetails("deadline exceeded")

				Expect(detailedErr.Details).To(Equal("deadline exceeded"))
				Expect(detailedErr).To(BeIdenticalTo(err)) // Should modify in place
			})

			It("should add formatted details", func() {
				err := New(KindCancelled, "operation cancelled")
				detailedErr := err.WithDetailsf("user %s, attempt %d", "john", 3)

				Expect(detailedErr.Details).To(Equal("user john, attempt 3"))
			})
		})
	})

	Describe("Predefined Error Constructors", func() {
		It("should create validation error", func() {
			err := NewValidation("invalid input")

			Expect(err.Kind).To(Equal(KindValidation))
			Expect(err.Message).To(Equal("invalid input"))
		})

		It("should create transient db error", func() {
			originalErr := errors.New("connection lost")
			err := NewTransientDB("vector query", originalErr)

			Expect(err.Kind).To(Equal(KindTransientDB))
			Expect(err.Message).To(ContainSubstring("transient database failure: vector query"))
			Expect(err.Cause).To(Equal(originalErr))
		})

		It("should create fatal db error", func() {
			originalErr := errors.New("syntax error")
			err := NewFatalDB("count query", originalErr)

			Expect(err.Kind).To(Equal(KindFatalDB))
			Expect(err.Message).To(ContainSubstring("fatal database failure: count query"))
		})

		It("should create resource exhausted error", func() {
			err := NewResourceExhausted("connection pool")

			Expect(err.Kind).To(Equal(KindResourceExhausted))
			Expect(err.Message).To(ContainSubstring("connection pool"))
		})

		It("should create cancelled error", func() {
			err := NewCancelled("retrieval")

			Expect(err.Kind).To(Equal(KindCancelled))
			Expect(err.Message).To(Equal("operation cancelled: retrieval"))
		})

		It("should create cache error", func() {
			originalErr := errors.New("eviction fault")
			err := NewCache("set", originalErr)

			Expect(err.Kind).To(Equal(KindCache))
			Expect(err.Cause).To(Equal(originalErr))
		})
	})

	Describe("Error Kind Checking", func() {
		It("should correctly identify error kinds", func() {
			validationErr := NewValidation("test")
			cancelledErr := NewCancelled("test")

			Expect(IsKind(validationErr, KindValidation)).To(BeTrue())
			Expect(IsKind(validationErr, KindCancelled)).To(BeFalse())
			Expect(IsKind(cancelledErr, KindCancelled)).To(BeTrue())
		})

		It("should handle non-AppError types", func() {
			regularErr := errors.New("regular error")

			Expect(IsKind(regularErr, KindValidation)).To(BeFalse())
			Expect(GetKind(regularErr)).To(Equal(KindInternal))
		})
	})

	Describe("Safe Messages", func() {
		It("should pass validation messages through verbatim", func() {
			err := NewValidation("specific validation message")
			Expect(SafeMessage(err)).To(Equal("specific validation message"))
		})

		It("should return a generic message for internal kinds", func() {
			err := NewFatalDB("query", errors.New("syntax error near SELECT"))
			Expect(SafeMessage(err)).NotTo(ContainSubstring("syntax error"))
		})

		It("should return a generic message for non-AppErrors", func() {
			regularErr := errors.New("internal panic")
			Expect(SafeMessage(regularErr)).To(Equal("an unexpected error occurred"))
		})
	})

	Describe("Logging Fields", func() {
		It("should generate structured logging fields", func() {
			originalErr := errors.New("connection failed")
			appErr := Wrapf(originalErr, KindFatalDB, "query failed").
				WithDetails("table: jobs")

			fields := LogFields(appErr)

			Expect(fields).To(HaveKey("error"))
			Expect(fields).To(HaveKey("error_kind"))
			Expect(fields).To(HaveKey("error_details"))
			Expect(fields).To(HaveKey("underlying_error"))

			Expect(fields["error_kind"]).To(Equal("fatal_db"))
			Expect(fields["error_details"]).To(Equal("table: jobs"))
			Expect(fields["underlying_error"]).To(Equal("connection failed"))
		})

		It("should handle simple AppError without details", func() {
			err := NewValidation("invalid input")
			fields := LogFields(err)

			Expect(fields).To(HaveKey("error"))
			Expect(fields).To(HaveKey("error_kind"))
			Expect(fields).NotTo(HaveKey("error_details"))
			Expect(fields).NotTo(HaveKey("underlying_error"))
		})

		It("should handle regular errors", func() {
			err := errors.New("regular error")
			fields := LogFields(err)

			Expect(fields).To(HaveKey("error"))
			Expect(fields).NotTo(HaveKey("error_kind"))
		})
	})

	Describe("Error Chaining", func() {
		It("should handle empty error list", func() {
			err := Chain()
			Expect(err).To(BeNil())
		})

		It("should handle single error", func() {
			originalErr := errors.New("single error")
			err := Chain(originalErr)

			Expect(err).To(Equal(originalErr))
		})

		It("should filter nil errors", func() {
			err1 := errors.New("error 1")
			err2 := errors.New("error 2")

			err := Chain(err1, nil, err2, nil)

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("error 1"))
			Expect(err.Error()).To(ContainSubstring("error 2"))
		})

		It("should chain multiple errors with an arrow separator", func() {
			err1 := errors.New("first error")
			err2 := errors.New("second error")
			err3 := errors.New("third error")

			chainedErr := Chain(err1, err2, err3)

			Expect(chainedErr).To(HaveOccurred())
			errMsg := chainedErr.Error()
			Expect(errMsg).To(ContainSubstring("first error"))
			Expect(errMsg).To(ContainSubstring("second error"))
			Expect(errMsg).To(ContainSubstring("third error"))
			Expect(errMsg).To(ContainSubstring(" -> "))
		})

		It("should return nil when all errors are nil", func() {
			err := Chain(nil, nil, nil)
			Expect(err).To(BeNil())
		})
	})

	Describe("Downgrade Signal", func() {
		It("should round-trip through IsDowngradeSignal", func() {
			cause := errors.New("reranker timeout")
			sig := NewDowngradeSignal("reranker", cause)

			component, ok := IsDowngradeSignal(sig)
			Expect(ok).To(BeTrue())
			Expect(component).To(Equal("reranker"))
			Expect(errors.Unwrap(sig)).To(Equal(cause))
		})

		It("should report false for an unrelated error", func() {
			_, ok := IsDowngradeSignal(errors.New("unrelated"))
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Error Kind Constants", func() {
		It("should have all expected error kinds defined", func() {
			expectedKinds := []Kind{
				KindValidation,
				KindTransientDB,
				KindFatalDB,
				KindResourceExhausted,
				KindCancelled,
				KindCache,
				KindInternal,
			}

			for _, kind := range expectedKinds {
				Expect(string(kind)).NotTo(BeEmpty())
			}
		})
	})
})
