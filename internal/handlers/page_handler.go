package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dentist-booking/internal/middleware"
)

// PageTemplate is the shell every page renders; the browser app fills it in.
var PageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} | Dental Clinic</title>
</head>
<body data-page="{{.Page}}"{{if .Role}} data-role="{{.Role}}"{{end}}>
<main id="app"><h1>{{.Title}}</h1></main>
</body>
</html>
`))

// Page renders the shell for one named page.
func (h *Handler) Page(page, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := gin.H{"Page": page, "Title": title}
		if p, ok := middleware.PrincipalFrom(c); ok {
			data["Role"] = p.Role.String()
		}
		c.HTML(http.StatusOK, "page", data)
	}
}
