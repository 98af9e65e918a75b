package ocr

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		engine *Ollama
		img    image.Image
		text   string
		err    error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		engine, err = NewOllama(server.URL()+"/", "qwen2.5vl")
		Expect(err).NotTo(HaveOccurred())
		img = image.NewRGBA(image.Rect(0, 0, 40, 20))
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = engine.Recognize(context.Background(), img, Options{
			Whitelist: Whitelist,
			Region:    image.Rect(0, 10, 40, 20),
		})
	})

	When("the model answers with MRZ lines", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, readErr := io.ReadAll(r.Body)
					Expect(readErr).NotTo(HaveOccurred())

					var req ollamaChatRequest
					Expect(json.Unmarshal(body, &req)).To(Succeed())
					Expect(req.Model).To(Equal("qwen2.5vl"))
					Expect(req.Stream).To(BeFalse())
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: "```\nP<UTOERIKSSON\nL898902C36\n```"},
					Done:    true,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the cleaned transcript", func() {
			Expect(text).To(Equal("P<UTOERIKSSON\nL898902C36"))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the status in the error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})

	When("the model cannot read the image", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "Sorry, the image is blank."},
				Done:    true,
			}))
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})
