package dal_test

import (
	"context"
	"database/sql"
	"regexp"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// candidateColumnNames mirrors the column order scanCandidates expects;
// kept local to the test since the production column list is unexported.
var candidateColumnNames = []string{
	"job_id", "job_title", "job_description", "job_short_description", "job_field",
	"job_experience", "job_skills_required", "job_workplace_type", "job_posted_date",
	"job_job_state", "job_apply_link", "job_company_id", "job_location_id",
	"company_id", "company_name", "company_logo",
	"location_id", "location_city", "location_country_id", "location_latitude", "location_longitude",
	"country_id", "country_name",
	"composite_score",
}

var _ = Describe("Query shapes", func() {
	var (
		db   *sql.DB
		mock sqlmock.Sqlmock
	)

	BeforeEach(func() {
		var err error
		db, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("Count", func() {
		It("scans the COUNT(*) result", func() {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

			var count int
			err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM jobs WHERE embedding IS NOT NULL").Scan(&count)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(7))
		})
	})

	Describe("candidate row scanning", func() {
		It("reads a full candidate row without error", func() {
			rows := sqlmock.NewRows(candidateColumnNames).AddRow(
				uuid.New().String(), "Senior Engineer", "desc", "short", "Engineering",
				"Mid", `{Go,SQL}`, "remote", time.Now(),
				"Active", "https://apply.example.com", uuid.New().String(), uuid.New().String(),
				uuid.New().String(), "Acme", "logo.png",
				uuid.New().String(), "Berlin", uuid.New().String(), 52.5, 13.4,
				uuid.New().String(), "Germany",
				0.25,
			)
			mock.ExpectQuery(".*").WillReturnRows(rows)

			result, err := db.QueryContext(context.Background(), "SELECT * FROM jobs")
			Expect(err).NotTo(HaveOccurred())
			defer result.Close()

			Expect(result.Next()).To(BeTrue())
			var (
				jobID, title, description, shortDescription, field string
				experience, skills, workplace                      string
				postedDate                                         time.Time
				state, applyLink, companyID, locationID             string
				companyID2, companyName, logo                      string
				locationID2, city, countryID                       string
				lat, lon                                           float64
				countryID2, countryName                            string
				score                                              float64
			)
			err = result.Scan(
				&jobID, &title, &description, &shortDescription, &field,
				&experience, &skills, &workplace, &postedDate,
				&state, &applyLink, &companyID, &locationID,
				&companyID2, &companyName, &logo,
				&locationID2, &city, &countryID, &lat, &lon,
				&countryID2, &countryName,
				&score,
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(title).To(Equal("Senior Engineer"))
			Expect(score).To(Equal(0.25))
		})
	})
})
