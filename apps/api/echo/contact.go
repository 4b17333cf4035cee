package echoapi

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

type contactApi struct {
	conf     *core.Config
	logger   core.Logger
	mailSvc  core.EmailService
	validate *validator.Validate
}

func registerContactAPI(g *echo.Group, deps ServerDeps) {
	api := contactApi{
		conf:     deps.Conf,
		logger:   deps.Logger,
		mailSvc:  deps.MailSvc,
		validate: deps.Validate,
	}
	g.POST("/contact", api.contact)
}

// contact forwards a public contact-form message to the site staff.
// Dispatch is synchronous so the visitor learns when it fails.
func (api *contactApi) contact(ctx echo.Context) error {
	var data ContactRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContactRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	msg := core.EmailMessage{
		To:      []mail.Address{{Address: api.conf.ContactEmail}},
		Subject: fmt.Sprintf("Contact form: %s", data.Subject),
		BodyStr: fmt.Sprintf("From: %s <%s>\n\n%s", data.Name, data.Email, data.Message),
	}
	if err := api.mailSvc.SendMessage(&msg); err != nil {
		api.logger.Error("sending contact email", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "your message could not be sent, please try again later")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "your message has been sent, we will get back to you shortly"})
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}
