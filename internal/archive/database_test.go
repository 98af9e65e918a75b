package archive

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/mrz-scanner/internal/mrz"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newScan := func(id string, created time.Time) *Scan {
		return &Scan{
			ID: id,
			Record: &mrz.Record{
				Layout:         mrz.TD1,
				DocumentNumber: "D23145890",
				Surname:        "ERIKSSON",
				ChecksPassed:   4,
				ChecksTotal:    4,
				Score:          1,
			},
			Attempts:  2,
			ImageFile: id + ".png",
			Source:    "frames",
			CreatedAt: created,
		}
	}

	Describe("SaveScan and GetScan", func() {
		var created time.Time

		BeforeEach(func() {
			created = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
			Expect(db.SaveScan(newScan("scan-1", created))).To(Succeed())
		})

		It("round-trips the scan", func() {
			got, err := db.GetScan("scan-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Record.Layout).To(Equal(mrz.TD1))
			Expect(got.Record.DocumentNumber).To(Equal("D23145890"))
			Expect(got.Record.Score).To(Equal(1.0))
			Expect(got.Attempts).To(Equal(2))
			Expect(got.CreatedAt.Equal(created)).To(BeTrue())
		})

		It("replaces a scan with the same ID", func() {
			updated := newScan("scan-1", created)
			updated.Attempts = 5
			Expect(db.SaveScan(updated)).To(Succeed())

			got, err := db.GetScan("scan-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Attempts).To(Equal(5))
		})

		It("survives reopening the database", func() {
			Expect(db.Close()).To(Succeed())
			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			got, err := db.GetScan("scan-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Source).To(Equal("frames"))
		})
	})

	Describe("SaveScan", func() {
		When("the ID is missing", func() {
			It("returns the error", func() {
				Expect(db.SaveScan(&Scan{})).To(MatchError(ContainSubstring("ID is required")))
			})
		})
	})

	Describe("GetScan", func() {
		When("the scan does not exist", func() {
			It("returns ErrNotFound", func() {
				_, err := db.GetScan("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("ListScans", func() {
		When("the database is empty", func() {
			It("returns an empty list", func() {
				scans, err := db.ListScans()
				Expect(err).NotTo(HaveOccurred())
				Expect(scans).NotTo(BeNil())
				Expect(scans).To(BeEmpty())
			})
		})

		When("scans exist", func() {
			BeforeEach(func() {
				base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
				Expect(db.SaveScan(newScan("a", base))).To(Succeed())
				Expect(db.SaveScan(newScan("b", base.Add(2*time.Hour)))).To(Succeed())
				Expect(db.SaveScan(newScan("c", base.Add(time.Hour)))).To(Succeed())
			})

			It("returns them newest first", func() {
				scans, err := db.ListScans()
				Expect(err).NotTo(HaveOccurred())
				Expect(scans).To(HaveLen(3))
				Expect([]string{scans[0].ID, scans[1].ID, scans[2].ID}).To(Equal([]string{"b", "c", "a"}))
			})
		})
	})

	Describe("DeleteScan", func() {
		BeforeEach(func() {
			Expect(db.SaveScan(newScan("scan-1", time.Now()))).To(Succeed())
		})

		It("removes the scan", func() {
			Expect(db.DeleteScan("scan-1")).To(Succeed())
			_, err := db.GetScan("scan-1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		When("the scan does not exist", func() {
			It("returns ErrNotFound", func() {
				Expect(db.DeleteScan("missing")).To(MatchError(ErrNotFound))
			})
		})
	})
})
