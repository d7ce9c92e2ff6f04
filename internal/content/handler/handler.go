// Package handler exposes the admin content API over gin.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/salonmirai/sitesync/internal/admin"
	"github.com/salonmirai/sitesync/internal/content"
	"github.com/salonmirai/sitesync/internal/content/engine"
	"github.com/salonmirai/sitesync/pkg/logger"
)

const maxImportBytes = 16 << 20

// collections maps URL segments to kinds.
var collections = map[string]content.Kind{
	"campaigns": content.KindCampaign,
	"news":      content.KindNews,
	"staff":     content.KindStaff,
	"services":  content.KindService,
}

// RegisterContentRoutes mounts the admin API on r. Authentication is the
// caller's concern; the actor is read from the "actor" context key.
func RegisterContentRoutes(r gin.IRoutes, ctl *admin.Controller) {
	r.GET("/content", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Document())
	})
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Stats())
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sync": ctl.Status(), "source": ctl.Source()})
	})

	for seg, kind := range collections {
		kind := kind
		r.POST("/"+seg, func(c *gin.Context) {
			f, _, err := readFields(c)
			if err != nil {
				writeError(c, err)
				return
			}
			item, res, err := ctl.Create(c.Request.Context(), actor(c), kind, f)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusCreated, gin.H{"item": item, "result": res})
		})
		r.PATCH("/"+seg+"/:id", func(c *gin.Context) {
			id, ok := idParam(c)
			if !ok {
				return
			}
			f, form, err := readFields(c)
			if err != nil {
				writeError(c, err)
				return
			}
			if form {
				// unchecked boxes are not submitted
				for _, name := range engine.Checkboxes(kind) {
					if _, present := f[name]; !present {
						f[name] = false
					}
				}
			}
			item, res, err := ctl.Update(c.Request.Context(), actor(c), kind, id, f)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"item": item, "result": res})
		})
		r.DELETE("/"+seg+"/:id", func(c *gin.Context) {
			id, ok := idParam(c)
			if !ok {
				return
			}
			res, err := ctl.Delete(c.Request.Context(), actor(c), kind, id)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"result": res})
		})
	}

	r.POST("/campaigns/:id/toggle", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		item, res, err := ctl.ToggleActive(c.Request.Context(), actor(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item, "result": res})
	})

	r.POST("/campaigns/active", func(c *gin.Context) {
		var req struct {
			Active *bool `json:"active"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
			writeError(c, &content.ValidationError{Reason: "body must be {\"active\": true|false}"})
			return
		}
		n, res, err := ctl.SetAllActive(c.Request.Context(), actor(c), *req.Active)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n, "result": res})
	})

	r.POST("/staff/:id/reviews", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		f, _, err := readFields(c)
		if err != nil {
			writeError(c, err)
			return
		}
		text, _ := f["review"].(string)
		if text == "" {
			text, _ = f["text"].(string)
		}
		item, res, err := ctl.AddReview(c.Request.Context(), actor(c), id, text)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"item": item, "result": res})
	})

	r.PUT("/settings", func(c *gin.Context) {
		f, _, err := readFields(c)
		if err != nil {
			writeError(c, err)
			return
		}
		s, res, err := ctl.UpdateSettings(c.Request.Context(), actor(c), f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"settings": s, "result": res})
	})

	r.GET("/export", func(c *gin.Context) {
		exp, err := ctl.Export(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		if exp.ArchiveURL != "" {
			c.Header("X-Archive-URL", exp.ArchiveURL)
			c.Header("X-Archive-Key", exp.ArchiveKey)
		}
		c.Header("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
		c.Data(http.StatusOK, "application/json; charset=utf-8", exp.Data)
	})

	r.POST("/import", func(c *gin.Context) {
		ctx := c.Request.Context()
		if key := c.Query("archiveKey"); key != "" {
			res, err := ctl.ImportFromArchive(ctx, actor(c), key)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"result": res})
			return
		}
		raw, err := importBody(c)
		if err != nil {
			writeError(c, err)
			return
		}
		res, err := ctl.Import(ctx, actor(c), raw)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": res})
	})

	r.POST("/reset", func(c *gin.Context) {
		res, err := ctl.Reset(c.Request.Context(), actor(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": res, "content": ctl.Document()})
	})
}

func actor(c *gin.Context) string { return c.GetString("actor") }

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// readFields reads a JSON object or a form body into Fields. form reports
// whether the body was form-encoded.
func readFields(c *gin.Context) (engine.Fields, bool, error) {
	ct := c.ContentType()
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		if ct == "multipart/form-data" {
			if err := c.Request.ParseMultipartForm(maxImportBytes); err != nil {
				return nil, true, &content.ValidationError{Reason: "unreadable form"}
			}
		} else if err := c.Request.ParseForm(); err != nil {
			return nil, true, &content.ValidationError{Reason: "unreadable form"}
		}
		f := engine.Fields{}
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				f[k] = v[0]
			}
		}
		return f, true, nil
	}

	f := engine.Fields{}
	dec := json.NewDecoder(io.LimitReader(c.Request.Body, maxImportBytes))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return f, false, nil
		}
		return nil, false, &content.ValidationError{Reason: "body must be a JSON object"}
	}
	return f, false, nil
}

// importBody reads an uploaded file field "file" or the raw request body.
func importBody(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, &content.ValidationError{Reason: "missing file field"}
		}
		f, err := fh.Open()
		if err != nil {
			return nil, &content.ValidationError{Reason: "unreadable upload"}
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxImportBytes))
	}
	return io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
}

func writeError(c *gin.Context, err error) {
	var (
		ve *content.ValidationError
		nf *content.NotFoundError
		se *content.StorageError
	)
	switch {
	case errors.As(err, &ve):
		body := gin.H{"error": ve.Error()}
		if len(ve.Fields) > 0 {
			body["fields"] = ve.Fields
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.Is(err, content.ErrUnsupported):
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": err.Error()})
	case errors.As(err, &se):
		logger.Errorf("content: %v", se)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save content"})
	default:
		logger.Errorf("content: unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
