package arcgis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/blue-raster/workforce-bridge/internal/resilience"
)

// AddAttachment uploads one file to a target record via the layer's
// addAttachment endpoint as a multipart form.
func (c *client) AddAttachment(ctx context.Context, layerURL string, objectID int64, name, contentType string, data []byte) error {
	endpoint := layerURL + "/" + strconv.FormatInt(objectID, 10) + "/addAttachment"

	return resilience.Do(ctx, c.retryCfg("addAttachment"), func(ctx context.Context) error {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "arcgis: addAttachment rate limit")
			}
		}

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)

		if err := writer.WriteField("f", "json"); err != nil {
			return eris.Wrap(err, "arcgis: write form field")
		}
		if c.tokens != nil {
			token, err := c.tokens.get(ctx)
			if err != nil {
				return err
			}
			if err := writer.WriteField("token", token); err != nil {
				return eris.Wrap(err, "arcgis: write token field")
			}
		}

		part, err := attachmentPart(writer, name, contentType)
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return eris.Wrap(err, "arcgis: write attachment bytes")
		}
		if err := writer.Close(); err != nil {
			return eris.Wrap(err, "arcgis: close multipart writer")
		}

		req, err := c.newRequest(ctx, http.MethodPost, endpoint, &buf, writer.FormDataContentType())
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrapf(err, "arcgis: add attachment %q", name)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			return statusError("add attachment", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "arcgis: read add attachment response")
		}
		var parsed addAttachmentResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return eris.Wrap(err, "arcgis: parse add attachment response")
		}
		if parsed.Error != nil {
			return eris.Wrapf(parsed.Error, "arcgis: add attachment %q", name)
		}
		if parsed.Result == nil || !parsed.Result.Success {
			return eris.Errorf("arcgis: add attachment %q rejected", name)
		}
		return nil
	})
}

// attachmentPart creates the file part with an explicit content type; the
// default multipart helper hardcodes application/octet-stream.
func attachmentPart(writer *multipart.Writer, name, contentType string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="attachment"; filename="`+name+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: create attachment part")
	}
	return part, nil
}
