package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestSplitCategories(t *testing.T) {
	assert.Equal(t, []string{"Traditionnel", "Marche"}, splitCategories("Traditionnel, Marche"))
	assert.Equal(t, []string{"Noël"}, splitCategories(" Noël ,, "))
	assert.Empty(t, splitCategories(""))
	assert.Empty(t, splitCategories(" , ,"))
}

func TestFormHasDistinguishesAbsentFromEmpty(t *testing.T) {
	form := url.Values{}
	form.Set("auteur", "")
	form.Set("paroles", "Min p'tit quinquin")

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	c := e.NewContext(req, httptest.NewRecorder())

	assert.True(t, formHas(c, "auteur"))
	assert.True(t, formHas(c, "paroles"))
	assert.False(t, formHas(c, "description"))
}
