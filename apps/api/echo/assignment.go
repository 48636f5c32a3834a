package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/user"
)

type assignmentApi struct {
	usrSvc   user.ServiceInterface
	registry *assignment.Registry
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc user.ServiceInterface, registry *assignment.Registry) {
	api := assignmentApi{usrSvc: usrSvc, registry: registry}

	ag := g.Group("/assignments", jwt)
	ag.POST("", api.create, adminMiddleware())
	ag.GET("", api.query)
	ag.DELETE("/:id", api.destroy, adminMiddleware())

	tg := g.Group("/teachers/:id", jwt)
	tg.GET("/streams", api.teacherStreams)
	tg.GET("/subjects", api.teacherSubjects)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := core.Validate.Struct(&data); err != nil {
		return err
	}

	asg, err := api.registry.Assign(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	filter := assignment.QueryFilter{
		TeacherID: ctx.QueryParam("teacher_id"),
		SubjectID: ctx.QueryParam("subject_id"),
		StreamID:  ctx.QueryParam("stream_id"),
	}

	// teachers only see their own assignments
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !actor.IsSchoolAdmin() {
		filter.TeacherID = actor.ID
	}

	asgs, err := api.registry.Query(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	if asgs == nil {
		asgs = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	if err := api.registry.Revoke(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) teacherStreams(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	teacherID := ctx.Param("id")
	if !actor.IsSchoolAdmin() && teacherID != actor.ID {
		return errHttpForbidden
	}

	streams, err := api.registry.StreamsFor(ctx.Request().Context(), teacherID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, streams)
}

func (api *assignmentApi) teacherSubjects(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	teacherID := ctx.Param("id")
	if !actor.IsSchoolAdmin() && teacherID != actor.ID {
		return errHttpForbidden
	}

	onlyEnterable := ctx.QueryParam("enterable") == "true"
	subjects, err := api.registry.SubjectsFor(ctx.Request().Context(), teacherID, onlyEnterable)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subjects)
}
