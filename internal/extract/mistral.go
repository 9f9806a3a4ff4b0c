package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pyq-crawler/internal/logging"
)

// Mistral defaults.
const (
	DefaultMistralBaseURL = "https://api.mistral.ai"
	DefaultMistralModel   = "mistral-ocr-latest"
)

const deleteTimeout = 10 * time.Second

// MistralConfig configures the upload-then-OCR service.
type MistralConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// MistralOCR uploads the document, obtains a signed URL for it, asks the OCR
// endpoint to read that URL and finally deletes the upload.
type MistralOCR struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  *zap.Logger
}

// NewMistralOCR returns the service A extractor. A nil client uses
// http.DefaultClient; the pipeline bounds each attempt by context.
func NewMistralOCR(cfg MistralConfig, client *http.Client, logger *zap.Logger) (*MistralOCR, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("mistral api key is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultMistralBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultMistralModel
	}
	return &MistralOCR{
		client:  client,
		baseURL: base,
		apiKey:  cfg.APIKey,
		model:   model,
		logger:  logging.OrNop(logger).Named("mistral"),
	}, nil
}

// Name implements Extractor.
func (m *MistralOCR) Name() string {
	return "mistral"
}

// Extract implements Extractor.
func (m *MistralOCR) Extract(ctx context.Context, doc Document) (Result, error) {
	fileID, err := m.upload(ctx, doc)
	if err != nil {
		return Result{}, err
	}
	defer m.deleteFile(ctx, fileID)

	signedURL, err := m.signedURL(ctx, fileID)
	if err != nil {
		return Result{}, err
	}

	text, err := m.ocr(ctx, signedURL)
	if err != nil {
		return Result{}, err
	}
	return NewResult(text, MethodServiceA), nil
}

type mistralFile struct {
	ID string `json:"id"`
}

type mistralSignedURL struct {
	URL string `json:"url"`
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralDocumentRef `json:"document"`
}

type mistralDocumentRef struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type mistralOCRResponse struct {
	Pages []mistralPage `json:"pages"`
}

type mistralPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

func (m *MistralOCR) upload(ctx context.Context, doc Document) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("purpose", "ocr"); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	part, err := w.CreateFormFile("file", fileName(doc.URL))
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	var out mistralFile
	if err := m.do(ctx, http.MethodPost, "/v1/files", w.FormDataContentType(), &body, &out); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("upload: response missing file id")
	}
	return out.ID, nil
}

func (m *MistralOCR) signedURL(ctx context.Context, fileID string) (string, error) {
	var out mistralSignedURL
	p := "/v1/files/" + url.PathEscape(fileID) + "/url?expiry=1"
	if err := m.do(ctx, http.MethodGet, p, "", nil, &out); err != nil {
		return "", fmt.Errorf("signed url: %w", err)
	}
	if out.URL == "" {
		return "", errors.New("signed url: response missing url")
	}
	return out.URL, nil
}

func (m *MistralOCR) ocr(ctx context.Context, documentURL string) (string, error) {
	payload, err := json.Marshal(mistralOCRRequest{
		Model:    m.model,
		Document: mistralDocumentRef{Type: "document_url", DocumentURL: documentURL},
	})
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}

	var out mistralOCRResponse
	if err := m.do(ctx, http.MethodPost, "/v1/ocr", "application/json", bytes.NewReader(payload), &out); err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}

	sort.SliceStable(out.Pages, func(i, j int) bool {
		return out.Pages[i].Index < out.Pages[j].Index
	})
	pages := make([]string, 0, len(out.Pages))
	for _, pg := range out.Pages {
		if t := strings.TrimSpace(pg.Markdown); t != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// deleteFile is best effort and runs even when ctx has already expired.
func (m *MistralOCR) deleteFile(ctx context.Context, fileID string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := m.do(delCtx, http.MethodDelete, "/v1/files/"+url.PathEscape(fileID), "", nil, nil); err != nil {
		m.logger.Warn("failed to delete uploaded file",
			zap.String("file_id", fileID),
			zap.Error(err))
	}
}

func (m *MistralOCR) do(ctx context.Context, method, p, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+p, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, p, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			m.logger.Debug("failed to close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, p, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", p, err)
	}
	return nil
}

func fileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return "document.pdf"
}
