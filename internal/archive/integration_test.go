package archive_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/mrz-scanner/internal/archive"
	"github.com/zombor/mrz-scanner/internal/capture"
	"github.com/zombor/mrz-scanner/internal/mrz"
	"github.com/zombor/mrz-scanner/internal/ocr"
	"github.com/zombor/mrz-scanner/internal/scan"
)

const idCardMRZ = "I<UTOD231458907<<<<<<<<<<<<<<<\n" +
	"7408122F1204159UTO<<<<<<<<<<<6\n" +
	"ERIKSSON<<ANNA<MARIA<<<<<<<<<<"

// scriptedEngine returns its transcripts in order, repeating the last one
type scriptedEngine struct {
	mu    sync.Mutex
	texts []string
	calls int
}

func (s *scriptedEngine) Recognize(ctx context.Context, img image.Image, opts ocr.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.texts)-1)
	s.calls++
	return s.texts[i], nil
}

func (s *scriptedEngine) Close() error {
	return nil
}

func writeFrame(path string) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 170, B: 160, A: 255})
		}
	}
	f, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()
	Expect(png.Encode(f, img)).To(Succeed())
}

var _ = Describe("Integration", func() {
	var (
		tempDir  string
		db       *archive.BoltDB
		store    *archive.LocalStorage
		engine   *scriptedEngine
		cfg      scan.Config
		service  *archive.Service
		ghServer *ghttp.Server
		err      error
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()

		db, err = archive.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = archive.NewLocalStorage(filepath.Join(tempDir, "frames"))
		Expect(err).NotTo(HaveOccurred())

		engine = &scriptedEngine{texts: []string{"SMUDGED<<<", idCardMRZ}}

		cfg = scan.DefaultConfig()
		cfg.Delay = time.Millisecond
		service = archive.NewService(db, store, engine, cfg)

		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		ghServer.Close()
		db.Close()
	})

	It("should scan a directory of frames and archive the record", func() {
		framesDir := filepath.Join(tempDir, "capture")
		Expect(os.MkdirAll(framesDir, 0755)).To(Succeed())
		writeFrame(filepath.Join(framesDir, "0001.png"))
		writeFrame(filepath.Join(framesDir, "0002.png"))

		result, err := scan.NewRunner(cfg, scan.Deps{
			Source: capture.NewFileSource(framesDir),
			Engine: engine,
		}).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Attempts).To(Equal(2))
		Expect(result.Record.Layout).To(Equal(mrz.TD1))
		Expect(result.Record.DocumentNumber).To(Equal("D23145890"))

		rec, err := service.Record(result, framesDir)
		Expect(err).NotTo(HaveOccurred())

		// The record and its frame are served back over HTTP
		server := archive.NewServer(service, archive.BasicAuth{})
		ghServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP)

		resp, err := http.Get(ghServer.URL() + "/api/scans/" + rec.ID)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var got archive.Scan
		Expect(json.NewDecoder(resp.Body).Decode(&got)).To(Succeed())
		Expect(got.Record.Surname).To(Equal("ERIKSSON"))
		Expect(got.Record.GivenNames).To(Equal("ANNA MARIA"))
		Expect(got.Attempts).To(Equal(2))

		imgResp, err := http.Get(ghServer.URL() + "/api/scans/" + rec.ID + "/image")
		Expect(err).NotTo(HaveOccurred())
		defer imgResp.Body.Close()
		Expect(imgResp.StatusCode).To(Equal(http.StatusOK))
		data, err := io.ReadAll(imgResp.Body)
		Expect(err).NotTo(HaveOccurred())
		_, err = png.Decode(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should scan an upload, list it and delete it", func() {
		server := archive.NewServer(service, archive.BasicAuth{})
		ghServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP, server.ServeHTTP, server.ServeHTTP)

		framePath := filepath.Join(tempDir, "upload.png")
		writeFrame(framePath)
		fileContent, err := os.ReadFile(framePath)
		Expect(err).NotTo(HaveOccurred())

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "id-card.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(fileContent)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req, err := http.NewRequest(http.MethodPost, ghServer.URL()+"/api/scans", body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var created archive.Scan
		Expect(json.NewDecoder(resp.Body).Decode(&created)).To(Succeed())
		Expect(created.Source).To(Equal("id-card.png"))
		Expect(created.Record.DocumentNumber).To(Equal("D23145890"))

		// Verify the scan is in the database
		saved, err := db.GetScan(created.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.Record.Layout).To(Equal(mrz.TD1))

		listResp, err := http.Get(ghServer.URL() + "/api/scans")
		Expect(err).NotTo(HaveOccurred())
		defer listResp.Body.Close()
		var scans []archive.Scan
		Expect(json.NewDecoder(listResp.Body).Decode(&scans)).To(Succeed())
		Expect(scans).To(HaveLen(1))

		delReq, err := http.NewRequest(http.MethodDelete, ghServer.URL()+"/api/scans/"+created.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		delResp, err := http.DefaultClient.Do(delReq)
		Expect(err).NotTo(HaveOccurred())
		defer delResp.Body.Close()
		Expect(delResp.StatusCode).To(Equal(http.StatusNoContent))

		_, err = db.GetScan(created.ID)
		Expect(err).To(MatchError(archive.ErrNotFound))
		_, err = store.Get(created.ImageFile)
		Expect(err).To(HaveOccurred())
	})
})
