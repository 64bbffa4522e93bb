// Package ocr extracts invoice data from document images using a vision
// model. The result is a draft document the client can edit before saving.
package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"invoicegarden-backend/models"
	"invoicegarden-backend/utils"
)

var ErrNoContent = errors.New("ocr: model returned no content")

// Service parses an invoice image into a structured document.
type Service interface {
	ParseInvoice(ctx context.Context, image []byte, mimeType string) (*models.InvoiceDocument, error)
}

const parsePrompt = `You are an invoice data extraction engine.
Extract the invoice from the image and answer with a single JSON object, no prose:
{
  "invoiceNumber": string,
  "fromName": string,
  "toName": string,
  "invoiceDate": string (YYYY-MM-DD),
  "dueDate": string (YYYY-MM-DD or empty),
  "currency": string (ISO 4217),
  "items": [{"name": string, "quantity": number, "price": number}],
  "notes": string
}
Leave fields you cannot read empty. Never invent line items.`

type OpenAIService struct {
	client *openai.Client
	model  string
}

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}
}

func (s *OpenAIService) ParseInvoice(ctx context.Context, image []byte, mimeType string) (*models.InvoiceDocument, error) {
	if len(image) == 0 {
		return nil, errors.New("ocr: empty image")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: 2048,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: parsePrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ocr: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrNoContent
	}

	return decodeParsed(resp.Choices[0].Message.Content)
}

type parsedInvoice struct {
	InvoiceNumber string       `json:"invoiceNumber"`
	FromName      string       `json:"fromName"`
	ToName        string       `json:"toName"`
	InvoiceDate   string       `json:"invoiceDate"`
	DueDate       string       `json:"dueDate"`
	Currency      string       `json:"currency"`
	Items         []parsedItem `json:"items"`
	Notes         string       `json:"notes"`
}

type parsedItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// decodeParsed turns model output into a draft document. Models often fence
// the JSON in markdown, so strip that first.
func decodeParsed(content string) (*models.InvoiceDocument, error) {
	raw := stripFences(content)

	var parsed parsedInvoice
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("ocr: malformed model output: %w", err)
	}

	doc := &models.InvoiceDocument{
		SchemaVersion: models.DocumentSchemaVersion,
		InvoiceNumber: strings.TrimSpace(parsed.InvoiceNumber),
		InvoiceFrom:   strings.TrimSpace(parsed.FromName),
		InvoiceTo:     strings.TrimSpace(parsed.ToName),
		Currency:      strings.ToUpper(strings.TrimSpace(parsed.Currency)),
		Notes:         strings.TrimSpace(parsed.Notes),
	}
	if doc.Currency == "" {
		doc.Currency = "USD"
	}
	doc.Date = normalizeDate(parsed.InvoiceDate)
	doc.DueDate = normalizeDate(parsed.DueDate)

	for _, item := range parsed.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		price := utils.Round2(item.Price)
		doc.Items = append(doc.Items, models.DocumentItem{
			Name:     name,
			Quantity: qty,
			Price:    price,
			Amount:   utils.Round2(qty * price),
		})
	}

	return doc, nil
}

func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		return strings.TrimSpace(trimmed)
	}
	// Some models pad the object with prose despite instructions.
	if start := strings.Index(trimmed, "{"); start > 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return trimmed[start : end+1]
		}
	}
	return trimmed
}

func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return ""
	}
	return s
}
