package archive

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "frames"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			savedPath string
			err       error
		)

		BeforeEach(func() {
			filename = "scan.png"
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(filename, []byte("png data"))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the name to retrieve it by", func() {
			Expect(savedPath).To(Equal("scan.png"))
		})

		It("should create the storage directory and the file", func() {
			Expect(filepath.Join(tmpDir, "frames", "scan.png")).To(BeAnExistingFile())
		})

		When("the name tries to leave the storage directory", func() {
			BeforeEach(func() {
				filename = "../escape.png"
			})

			It("should keep the file inside", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedPath).To(Equal("escape.png"))
				Expect(filepath.Join(tmpDir, "escape.png")).NotTo(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		It("returns saved data", func() {
			name, err := storage.Save("scan.png", []byte("png data"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("png data")))
		})

		When("the file does not exist", func() {
			It("returns the error", func() {
				_, err := storage.Get("missing.png")
				Expect(err).To(MatchError(ContainSubstring("reading file")))
			})
		})
	})

	Describe("Delete", func() {
		It("removes the file", func() {
			name, err := storage.Save("scan.png", []byte("png data"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete(name)).To(Succeed())
			Expect(filepath.Join(tmpDir, "frames", "scan.png")).NotTo(BeAnExistingFile())
		})

		When("the file does not exist", func() {
			It("returns the error", func() {
				Expect(storage.Delete("missing.png")).To(MatchError(ContainSubstring("deleting file")))
			})
		})
	})
})
