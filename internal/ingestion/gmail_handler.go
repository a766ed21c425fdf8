package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/fmuoria/cv-grader/internal/logging"
	"github.com/fmuoria/cv-grader/internal/models"
)

// ErrGmailNotAuthorized is returned when no OAuth token has been saved yet
var ErrGmailNotAuthorized = errors.New("gmail not authorized, run the gmail-auth command first")

// ProgressCallback reports fetch progress
type ProgressCallback func(current, total int, message string)

// GmailHandler fetches applications mailed to the recruiting inbox
type GmailHandler struct {
	service    *gmail.Service
	files      *FileHandler
	logger     *logging.Logger
	progressCb ProgressCallback
}

// NewGmailHandler creates a handler from the OAuth client credentials and a
// previously saved token. It never prompts.
func NewGmailHandler(ctx context.Context, credentialsPath, tokenPath string, files *FileHandler, logger *logging.Logger) (*GmailHandler, error) {
	config, err := oauthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGmailNotAuthorized, err)
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}

	return NewGmailHandlerWithService(srv, files, logger), nil
}

// NewGmailHandlerWithService wraps an existing Gmail service
func NewGmailHandlerWithService(srv *gmail.Service, files *FileHandler, logger *logging.Logger) *GmailHandler {
	if files == nil {
		files = NewFileHandler(DefaultMaxFileSize, logger)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &GmailHandler{
		service: srv,
		files:   files,
		logger:  logger,
	}
}

// SetProgressCallback sets the progress callback function
func (gh *GmailHandler) SetProgressCallback(cb ProgressCallback) {
	gh.progressCb = cb
}

func (gh *GmailHandler) reportProgress(current, total int, message string) {
	if gh.progressCb != nil {
		gh.progressCb(current, total, message)
	}
}

// Authorize runs the interactive OAuth flow: it prints the consent URL to
// out, reads the authorization code from in and saves the token.
func Authorize(ctx context.Context, credentialsPath, tokenPath string, in io.Reader, out io.Writer) error {
	config, err := oauthConfig(credentialsPath)
	if err != nil {
		return err
	}

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Fscan(bufio.NewReader(in), &authCode); err != nil {
		return fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web: %w", err)
	}

	fmt.Fprintf(out, "Saving credential file to: %s\n", tokenPath)
	return saveToken(tokenPath, tok)
}

func oauthConfig(credentialsPath string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	return config, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// saveToken saves a token to a file path
func saveToken(path string, token *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// FetchApplications turns every message matching subject into an
// application for jobID, one per sender. Messages of the same sender are
// merged. Ids and submission times are left for the repository to assign.
func (gh *GmailHandler) FetchApplications(ctx context.Context, subject, jobID string) ([]models.Application, error) {
	const user = "me"
	query := fmt.Sprintf("subject:%q", subject)

	var refs []*gmail.Message
	err := gh.service.Users.Messages.List(user).Q(query).Pages(ctx, func(r *gmail.ListMessagesResponse) error {
		refs = append(refs, r.Messages...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve messages: %w", err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no messages found with subject: %s", subject)
	}

	bySender := make(map[string]*models.Application)
	var order []string

	for i, ref := range refs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		gh.reportProgress(i+1, len(refs), fmt.Sprintf("Fetching message %d/%d", i+1, len(refs)))

		msg, err := gh.service.Users.Messages.Get(user, ref.Id).Context(ctx).Do()
		if err != nil {
			gh.logger.Warn("unable to retrieve message", "id", ref.Id, "error", err)
			continue
		}

		name, email := parseSender(headerValue(msg, "From"))
		app, ok := bySender[email]
		if !ok {
			app = &models.Application{
				JobID:          jobID,
				ApplicantName:  name,
				ApplicantEmail: email,
				Documents:      []models.Document{},
			}
			bySender[email] = app
			order = append(order, email)
		}

		for _, part := range attachmentParts(msg.Payload) {
			doc, err := gh.fetchAttachment(ctx, user, msg.Id, part)
			if err != nil {
				gh.logger.Warn("skipping attachment", "message", msg.Id, "file", part.Filename, "error", err)
				continue
			}
			app.Documents = append(app.Documents, doc)
			if app.CVText == "" && strings.EqualFold(filepath.Ext(doc.FileName), ".txt") {
				if text, err := ExtractText(doc); err == nil {
					app.CVText = text
				}
			}
		}

		if app.CVText == "" && len(app.Documents) == 0 {
			app.CVText = msg.Snippet
		}
	}

	apps := make([]models.Application, 0, len(order))
	for _, email := range order {
		app := bySender[email]
		if app.CVText == "" && len(app.Documents) == 0 {
			continue
		}
		apps = append(apps, *app)
	}
	return apps, nil
}

// ApplicationCreator stores imported applications
type ApplicationCreator interface {
	CreateApplication(ctx context.Context, app models.Application) (models.Application, error)
}

// Import fetches the applications for jobID and stores each one
func (gh *GmailHandler) Import(ctx context.Context, store ApplicationCreator, subject, jobID string) ([]models.Application, error) {
	apps, err := gh.FetchApplications(ctx, subject, jobID)
	if err != nil {
		return nil, err
	}

	created := make([]models.Application, 0, len(apps))
	for _, app := range apps {
		saved, err := store.CreateApplication(ctx, app)
		if err != nil {
			return created, fmt.Errorf("failed to save application from %s: %w", app.ApplicantEmail, err)
		}
		created = append(created, saved)
	}
	return created, nil
}

func (gh *GmailHandler) fetchAttachment(ctx context.Context, user, messageID string, part *gmail.MessagePart) (models.Document, error) {
	if !IsSupported(part.Filename) {
		return models.Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, part.Filename)
	}

	attachment, err := gh.service.Users.Messages.Attachments.Get(user, messageID, part.Body.AttachmentId).Context(ctx).Do()
	if err != nil {
		return models.Document{}, fmt.Errorf("unable to retrieve attachment: %w", err)
	}

	data, err := decodeAttachment(attachment.Data)
	if err != nil {
		return models.Document{}, fmt.Errorf("unable to decode attachment: %w", err)
	}

	return gh.files.ReadDocument(part.Filename, bytes.NewReader(data))
}

// attachmentParts walks nested multipart payloads
func attachmentParts(part *gmail.MessagePart) []*gmail.MessagePart {
	if part == nil {
		return nil
	}
	var parts []*gmail.MessagePart
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		parts = append(parts, part)
	}
	for _, child := range part.Parts {
		parts = append(parts, attachmentParts(child)...)
	}
	return parts
}

func decodeAttachment(data string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}

func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// parseSender splits a From header into display name and address. The
// local part of the address stands in for a missing name.
func parseSender(from string) (name, email string) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		from = strings.TrimSpace(from)
		if from == "" {
			return "Unknown", ""
		}
		return from, strings.ToLower(from)
	}

	email = strings.ToLower(addr.Address)
	name = strings.TrimSpace(addr.Name)
	if name == "" {
		if idx := strings.Index(addr.Address, "@"); idx > 0 {
			name = addr.Address[:idx]
		} else {
			name = "Unknown"
		}
	}
	return name, email
}
