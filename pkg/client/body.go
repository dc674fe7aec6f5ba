package client

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/plmrlnsnts/http-extended/pkg/pathmap"
	"github.com/plmrlnsnts/http-extended/pkg/request"
)

const (
	ContentTypeJSON        = "application/json"
	ContentTypeForm        = "application/x-www-form-urlencoded"
	ContentTypeOctetStream = "application/octet-stream"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"") //nolint:gochecknoglobals

// encodeBody encodes body parameters and returns the body and its Content-Type.
// Attachments are sent only in the multipart format.
func encodeBody(format request.BodyFormat, params *pathmap.PathMap, attachments []request.Attachment) ([]byte, string, error) {
	switch format {
	case request.FormatJSON, "":
		body, err := json.Marshal(params)
		if err != nil {
			return nil, "", fmt.Errorf(`cannot encode JSON body: %w`, err)
		}
		return body, ContentTypeJSON, nil
	case request.FormatForm:
		return []byte(params.Encode()), ContentTypeForm, nil
	case request.FormatMultipart:
		return encodeMultipart(params, attachments)
	default:
		return nil, "", fmt.Errorf(`body format "%s" is not supported`, format)
	}
}

func encodeMultipart(params *pathmap.PathMap, attachments []request.Attachment) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	// Fields
	var err error
	params.Walk(func(key, value string) {
		if err == nil {
			err = w.WriteField(key, value)
		}
	})
	if err != nil {
		return nil, "", fmt.Errorf(`cannot encode multipart body: %w`, err)
	}

	// Files
	for _, file := range attachments {
		header := make(textproto.MIMEHeader)
		for k, v := range file.Header {
			header[textproto.CanonicalMIMEHeaderKey(k)] = v
		}
		disposition := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(file.Name))
		if file.Filename != "" {
			disposition += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(file.Filename))
		}
		header.Set("Content-Disposition", disposition)
		if header.Get("Content-Type") == "" && file.Filename != "" {
			header.Set("Content-Type", ContentTypeOctetStream)
		}
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf(`cannot encode multipart file "%s": %w`, file.Name, err)
		}
		if _, err := part.Write(file.Contents); err != nil {
			return nil, "", fmt.Errorf(`cannot encode multipart file "%s": %w`, file.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf(`cannot encode multipart body: %w`, err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
