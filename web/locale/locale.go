// Package locale translates the user-facing messages of the registry.
// English is built in through the default messages in messages.go;
// other languages are loaded from the embedded translation files.
package locale

import (
	"embed"
	"io/fs"
	"sync"

	"github.com/medreg/patient-registry/logger"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed translation/*
var i18nFS embed.FS

const localizerKey = "localizer"

var (
	i18nBundle *i18n.Bundle
	once       sync.Once
	initErr    error
)

// InitLocalizer builds the message bundle. It is safe to call more than once.
func InitLocalizer() error {
	once.Do(func() {
		b := i18n.NewBundle(language.MustParse("en-US"))
		b.RegisterUnmarshalFunc("toml", toml.Unmarshal)
		if err := parseTranslationFiles(i18nFS, b); err != nil {
			initErr = err
			return
		}
		i18nBundle = b
	})
	return initErr
}

func parseTranslationFiles(i18nFS embed.FS, bundle *i18n.Bundle) error {
	return fs.WalkDir(i18nFS, "translation", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := i18nFS.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = bundle.ParseMessageFileBytes(data, path)
		return err
	})
}

// LocalizerMiddleware picks the language from the "lang" cookie or the
// Accept-Language header and stores a localizer in the gin context.
func LocalizerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if i18nBundle == nil {
			if err := InitLocalizer(); err != nil {
				logger.Warning("i18n init failed:", err)
			}
		}
		var lang string
		if cookie, err := c.Request.Cookie("lang"); err == nil {
			lang = cookie.Value
		} else {
			lang = c.GetHeader("Accept-Language")
		}
		if i18nBundle != nil {
			c.Set(localizerKey, i18n.NewLocalizer(i18nBundle, lang))
		}
		c.Next()
	}
}

// T returns msg in the request's language, falling back to English.
func T(c *gin.Context, msg *i18n.Message) string {
	v, ok := c.Get(localizerKey)
	if !ok {
		return msg.Other
	}
	localizer, _ := v.(*i18n.Localizer)
	if localizer == nil {
		return msg.Other
	}
	out, err := localizer.Localize(&i18n.LocalizeConfig{DefaultMessage: msg})
	if err != nil {
		logger.Errorf("Failed to localize message %s: %v", msg.ID, err)
		return msg.Other
	}
	return out
}
