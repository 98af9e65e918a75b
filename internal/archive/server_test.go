package archive

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/mrz-scanner/internal/mrz"
)

var anyPath = regexp.MustCompile(`.*`)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		engine      *mockEngine
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		engine = &mockEngine{text: passportMRZ}
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, storage, engine, testConfig(),
			&mockIDGenerator{id: "scan-1"},
			&mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
		)
		server := NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AllowUnhandledRequests = true
		ghttpServer.UnhandledRequestStatusCode = http.StatusInternalServerError
		ghttpServer.RouteToHandler(http.MethodGet, anyPath, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodPost, anyPath, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodDelete, anyPath, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodOptions, anyPath, server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path string, body io.Reader, header http.Header) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		for k, v := range header {
			req.Header[k] = v
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	upload := func(filename string, data []byte) *http.Response {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		return do(http.MethodPost, "/api/scans", &body, http.Header{
			"Content-Type": []string{writer.FormDataContentType()},
		})
	}

	Describe("GET /healthz", func() {
		It("returns OK", func() {
			resp := do(http.MethodGet, "/healthz", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("GET /api/scans", func() {
		When("scans exist", func() {
			BeforeEach(func() {
				db.scans["a"] = &Scan{ID: "a", Record: &mrz.Record{Layout: mrz.TD3}}
			})

			It("returns them as JSON", func() {
				resp := do(http.MethodGet, "/api/scans", nil, nil)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var scans []*Scan
				Expect(json.NewDecoder(resp.Body).Decode(&scans)).To(Succeed())
				Expect(scans).To(HaveLen(1))
				Expect(scans[0].Record.Layout).To(Equal(mrz.TD3))
			})

			It("sets CORS headers", func() {
				resp := do(http.MethodGet, "/api/scans", nil, nil)
				defer resp.Body.Close()
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = io.ErrUnexpectedEOF
			})

			It("returns status Internal Server Error", func() {
				resp := do(http.MethodGet, "/api/scans", nil, nil)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("POST /api/scans", func() {
		When("the upload validates", func() {
			It("returns status Created with the scan", func() {
				resp := upload("passport.png", testPNG())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var rec Scan
				Expect(json.NewDecoder(resp.Body).Decode(&rec)).To(Succeed())
				Expect(rec.ID).To(Equal("scan-1"))
				Expect(rec.Record.DocumentNumber).To(Equal("L898902C3"))
			})
		})

		When("no shot validates", func() {
			BeforeEach(func() {
				engine.text = "NOT AN MRZ"
			})

			It("returns status Unprocessable Entity", func() {
				resp := upload("passport.png", testPNG())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			})
		})

		When("the file is not an image", func() {
			It("returns status Bad Request", func() {
				resp := upload("passport.jpg", []byte("garbage"))
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var body map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body["error"]).To(ContainSubstring("decoding upload"))
			})
		})

		When("no file is attached", func() {
			It("returns status Bad Request", func() {
				var body bytes.Buffer
				writer := multipart.NewWriter(&body)
				Expect(writer.WriteField("note", "empty")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp := do(http.MethodPost, "/api/scans", &body, http.Header{
					"Content-Type": []string{writer.FormDataContentType()},
				})
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("GET /api/scans/{id}", func() {
		BeforeEach(func() {
			db.scans["a"] = &Scan{ID: "a", Source: "frames"}
		})

		It("returns the scan", func() {
			resp := do(http.MethodGet, "/api/scans/a", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("returns status Not Found for an unknown ID", func() {
			resp := do(http.MethodGet, "/api/scans/missing", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/scans/{id}/image", func() {
		BeforeEach(func() {
			db.scans["a"] = &Scan{ID: "a", ImageFile: "a.png"}
			storage.files["a.png"] = []byte("png")
		})

		It("returns the frame", func() {
			resp := do(http.MethodGet, "/api/scans/a/image", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png")))
		})

		It("returns status Not Found for an unknown ID", func() {
			resp := do(http.MethodGet, "/api/scans/missing/image", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /api/scans/{id}", func() {
		BeforeEach(func() {
			db.scans["a"] = &Scan{ID: "a"}
		})

		It("returns status No Content", func() {
			resp := do(http.MethodDelete, "/api/scans/a", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.scans).To(BeEmpty())
		})

		It("returns status Not Found for an unknown ID", func() {
			resp := do(http.MethodDelete, "/api/scans/missing", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("OPTIONS preflight", func() {
		It("returns status No Content with CORS headers", func() {
			resp := do(http.MethodOptions, "/api/scans", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("DELETE"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("rejects requests without credentials", func() {
			resp := do(http.MethodGet, "/api/scans", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("rejects wrong credentials", func() {
			resp := do(http.MethodGet, "/api/scans", nil, http.Header{
				"Authorization": []string{"Basic " + base64.StdEncoding.EncodeToString([]byte("admin:wrong"))},
			})
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("accepts valid credentials", func() {
			resp := do(http.MethodGet, "/api/scans", nil, http.Header{
				"Authorization": []string{"Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))},
			})
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("leaves the health check open", func() {
			resp := do(http.MethodGet, "/healthz", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
