package screen

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/jain-scan/internal/capture"
	"github.com/zombor/jain-scan/internal/classify"
)

func labelPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 240, G: 230, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

// multipartBody builds a /api/scan form; file is skipped when nil
func multipartBody(fields map[string]string, file []byte) (*bytes.Buffer, string) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	for k, v := range fields {
		Expect(writer.WriteField(k, v)).To(Succeed())
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", "label.png")
		Expect(err).NotTo(HaveOccurred())
		part.Write(file)
	}
	Expect(writer.Close()).To(Succeed())
	return &b, writer.FormDataContentType()
}

func decodeView(resp *http.Response) stateView {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	var view stateView
	Expect(json.Unmarshal(body, &view)).To(Succeed())
	return view
}

var _ = Describe("Server", func() {
	var (
		classifier  *mockClassifier
		host        classify.Classifier
		auth        BasicAuth
		server      *Server
		ghttpServer *ghttp.Server
		client      *http.Client
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		sessions := NewSessions(func() *App {
			return NewApp(classifier, capture.DefaultOptions())
		}, 0, 0)
		server = NewServerWithMux(sessions, host, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		anyPath := regexp.MustCompile(".*")
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodOptions} {
			ghttpServer.RouteToHandler(method, anyPath, server.ServeHTTP)
		}
	}

	scan := func(fields map[string]string, file []byte) *http.Response {
		body, contentType := multipartBody(fields, file)
		resp, err := client.Post(ghttpServer.URL()+"/api/scan", contentType, body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	post := func(path string) *http.Response {
		resp, err := client.Post(ghttpServer.URL()+path, "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	BeforeEach(func() {
		classifier = newMockClassifier("YES. Contains only plant-based ingredients")
		host = nil
		auth = BasicAuth{}
		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		client = &http.Client{Jar: jar}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
			ghttpServer = nil
		}
	})

	Describe("handleIndex", func() {
		It("should return the screen", func() {
			resp, err := client.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Scan Ingredients"))
			Expect(string(body)).To(ContainSubstring("Check ingredients"))
		})

		It("should offer a crop step before upload", func() {
			resp, err := client.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring(`id="crop-frame"`))
			Expect(string(body)).To(ContainSubstring("Use photo"))
		})

		It("should issue a session cookie", func() {
			resp, err := client.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.Cookies()).To(ContainElement(HaveField("Name", sessionCookie)))
		})

		It("should reject other methods", func() {
			resp := post("/")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("handleStaticJS", func() {
		It("should send the crop selection with the upload", func() {
			resp, err := client.Get(ghttpServer.URL() + "/static/app.js")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/javascript"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			for _, field := range []string{"crop_x", "crop_y", "crop_w", "crop_h"} {
				Expect(string(body)).To(ContainSubstring(field))
			}
		})
	})

	Describe("handleState", func() {
		It("should return the initial state", func() {
			resp, err := client.Get(ghttpServer.URL() + "/api/state")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			view := decodeView(resp)
			Expect(view.HeaderText).To(Equal(WaitingHeadline))
			Expect(view.HasPayload).To(BeFalse())
			Expect(view.Status).To(Equal(StatusIdle))
		})
	})

	Describe("handleScan", func() {
		When("a photo is uploaded", func() {
			It("should store the capture", func() {
				resp := scan(nil, labelPNG(64, 32))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				view := decodeView(resp)
				Expect(view.HasPayload).To(BeTrue())
				Expect(view.DisplayImage).To(HavePrefix("/api/photo?v="))
				Expect(view.Status).To(Equal(StatusCaptured))
			})

			It("should serve the encoded photo", func() {
				scan(nil, labelPNG(64, 32)).Body.Close()
				resp, err := client.Get(ghttpServer.URL() + "/api/photo")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				_, format, err := image.DecodeConfig(bytes.NewReader(body))
				Expect(err).NotTo(HaveOccurred())
				Expect(format).To(Equal("jpeg"))
			})

			It("should never send the payload back to the page", func() {
				resp := scan(nil, labelPNG(8, 8))
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).NotTo(ContainSubstring("base64"))
			})
		})

		When("a crop is requested", func() {
			It("should crop before encoding", func() {
				scan(map[string]string{"crop_x": "0", "crop_y": "0", "crop_w": "16", "crop_h": "8"}, labelPNG(64, 32)).Body.Close()
				resp, err := client.Get(ghttpServer.URL() + "/api/photo")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				cfg, _, err := image.DecodeConfig(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Width).To(Equal(16))
				Expect(cfg.Height).To(Equal(8))
			})

			It("should reject a partial crop", func() {
				resp := scan(map[string]string{"crop_x": "0"}, labelPNG(8, 8))
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("camera permission was denied", func() {
			It("should answer forbidden with a notice", func() {
				resp := scan(map[string]string{"permission": "denied"}, nil)
				Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
				view := decodeView(resp)
				Expect(view.Notice).To(Equal("Sorry, we need camera permissions to make this work!"))
				Expect(view.HasPayload).To(BeFalse())
			})
		})

		When("the capture was canceled", func() {
			It("should leave the state unchanged", func() {
				resp := scan(map[string]string{"canceled": "1"}, nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				view := decodeView(resp)
				Expect(view.HasPayload).To(BeFalse())
				Expect(view.Notice).To(BeEmpty())
			})
		})

		When("the upload is not an image", func() {
			It("should keep the previous capture", func() {
				first := decodeView(scan(nil, labelPNG(8, 8)))

				resp := scan(nil, []byte("not an image"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				view := decodeView(resp)
				Expect(view.DisplayImage).To(Equal(first.DisplayImage))
				Expect(view.Notice).To(HavePrefix("Error uploading image: "))
			})
		})

		When("no file is sent", func() {
			It("should answer bad request", func() {
				resp := scan(map[string]string{}, nil)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleCheck", func() {
		When("nothing has been captured", func() {
			It("should answer bad request without classifying", func() {
				resp := post("/api/check")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				view := decodeView(resp)
				Expect(view.Notice).To(Equal("No image to check. Please take a picture first."))
				Expect(classifier.calls()).To(BeZero())
			})
		})

		When("a photo has been captured", func() {
			It("should show the verdict", func() {
				scan(nil, labelPNG(8, 8)).Body.Close()
				resp := post("/api/check")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				view := decodeView(resp)
				Expect(view.HeaderText).To(Equal(classify.PositiveHeadline))
				Expect(view.ExplanationText).To(Equal("Contains only plant-based ingredients"))
				sent := classifier.sent()
				Expect(sent).To(HaveLen(1))
				Expect(sent[0]).To(HavePrefix("data:image/jpeg;base64,"))
			})
		})

		When("the classification service fails", func() {
			It("should answer bad gateway and keep the headline", func() {
				classifier.err = &classify.ServiceError{StatusCode: 503}
				scan(nil, labelPNG(8, 8)).Body.Close()
				resp := post("/api/check")
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				view := decodeView(resp)
				Expect(view.HeaderText).To(Equal(WaitingHeadline))
				Expect(view.Notice).To(Equal("Error checking ingredients: API request failed"))
			})
		})

		It("should keep sessions apart", func() {
			scan(nil, labelPNG(8, 8)).Body.Close()

			other := &http.Client{}
			resp, err := other.Post(ghttpServer.URL()+"/api/check", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("handleDismissNotice", func() {
		It("should clear the notice", func() {
			post("/api/check").Body.Close()
			view := decodeView(post("/api/notice/dismiss"))
			Expect(view.Notice).To(BeEmpty())
		})
	})

	Describe("handlePhoto", func() {
		It("should answer not found before a capture", func() {
			resp, err := client.Get(ghttpServer.URL() + "/api/photo")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleIsJain", func() {
		isJain := func(body string) *http.Response {
			resp, err := client.Post(ghttpServer.URL()+"/isjain", "application/json", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("no host classifier is configured", func() {
			It("should not serve the endpoint", func() {
				resp := isJain(`{"base64Image": "data:image/jpeg;base64,QUJD"}`)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})

		When("a host classifier is configured", func() {
			var hostClassifier *mockClassifier

			BeforeEach(func() {
				hostClassifier = &mockClassifier{response: &classify.Response{
					Text:        "NO. Contains onion powder.",
					Verdict:     "NO",
					Explanation: "Contains onion powder.",
				}}
				host = hostClassifier
				setupServer()
			})

			It("should answer with every response field", func() {
				resp := isJain(`{"base64Image": "data:image/jpeg;base64,QUJD"}`)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var body map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body).To(HaveKeyWithValue("response", "NO. Contains onion powder."))
				Expect(body).To(HaveKeyWithValue("verdict", "NO"))
				Expect(body).To(HaveKeyWithValue("explanation", "Contains onion powder."))
				Expect(hostClassifier.sent()).To(Equal([]string{"data:image/jpeg;base64,QUJD"}))
			})

			It("should reject an invalid body", func() {
				resp := isJain(`not json`)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})

			It("should map a missing image to bad request", func() {
				hostClassifier.err = classify.ErrMissingInput
				resp := isJain(`{"base64Image": ""}`)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})

			It("should map backend failures to bad gateway", func() {
				hostClassifier.err = &classify.ServiceError{StatusCode: 500}
				resp := isJain(`{"base64Image": "data:image/jpeg;base64,QUJD"}`)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			})
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			setupServer()
		})

		It("should reject requests without credentials", func() {
			resp, err := client.Get(ghttpServer.URL() + "/api/state")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Jain Scan"))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/state", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:pass")))
			resp, err := client.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/check", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := client.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})
