package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/results"
	"github.com/trezcool/shule/core/user"
)

type examApi struct {
	usrSvc user.ServiceInterface
	svc    *results.Service
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc user.ServiceInterface, svc *results.Service) {
	api := examApi{usrSvc: usrSvc, svc: svc}

	eg := g.Group("/exams", jwt)
	eg.POST("", api.create)
	eg.GET("", api.query)
	eg.GET("/:id", api.retrieve)
	eg.PUT("/:id/status", api.updateStatus)
	eg.DELETE("/:id", api.destroy)
	eg.GET("/:id/statistics", api.statistics)
	eg.GET("/:id/subjects/:subjectID/students", api.eligibleStudents)
	eg.GET("/:id/subjects/:subjectID/results", api.queryResults)
	eg.POST("/:id/subjects/:subjectID/results", api.saveResults)

	rg := g.Group("/results", jwt)
	rg.GET("/:id", api.retrieveResult)
	rg.PUT("/:id", api.updateResult)
	rg.DELETE("/:id", api.destroyResult)
	rg.POST("/:id/verify", api.verifyResult)

	gg := g.Group("/grading-systems", jwt)
	gg.POST("", api.createGradingSystem)
}

// Handlers

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ex, err := api.svc.CreateExam(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ex)
}

func (api *examApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	schoolID := ctx.QueryParam("school_id")
	if schoolID == "" {
		schoolID = actor.SchoolID
	}

	exams, err := api.svc.ListExams(ctx.Request().Context(), actor, schoolID)
	if err != nil {
		return err
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ex, err := api.svc.GetExam(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *examApi) updateStatus(ctx echo.Context) error {
	var data StatusUpdateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdateRequest")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.UpdateExamStatus(ctx.Request().Context(), actor, ctx.Param("id"), exam.Status(data.Status)); err != nil {
		return err
	}
	ex, err := api.svc.GetExam(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *examApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteExam(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examApi) statistics(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	stats, err := api.svc.Statistics(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *examApi) eligibleStudents(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	students, err := api.svc.EligibleStudents(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("subjectID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *examApi) queryResults(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.ListResults(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("subjectID"))
	if err != nil {
		return err
	}
	if res == nil {
		res = []exam.Result{}
	}
	return ctx.JSON(http.StatusOK, res)
}

// saveResults writes a batch of result rows; each row succeeds or fails on
// its own and the response reports the outcome per student.
func (api *examApi) saveResults(ctx echo.Context) error {
	var data SaveResultsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveResultsRequest")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	outcomes, err := api.svc.SaveResults(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("subjectID"), data.Rows)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SaveResultsResponse{Outcomes: outcomes})
}

func (api *examApi) retrieveResult(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.GetResult(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *examApi) updateResult(ctx echo.Context) error {
	var row results.ResultRow
	if err := ctx.Bind(&row); err != nil {
		return errors.Wrap(err, "binding to ResultRow")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.UpdateResult(ctx.Request().Context(), actor, ctx.Param("id"), row)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *examApi) destroyResult(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteResult(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examApi) verifyResult(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.VerifyResult(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *examApi) createGradingSystem(ctx echo.Context) error {
	var data exam.GradingSystem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradingSystem")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if data.SchoolID == "" {
		data.SchoolID = actor.SchoolID
	}

	gs, err := api.svc.CreateGradingSystem(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, gs)
}

type (
	StatusUpdateRequest struct {
		Status string `json:"status" validate:"required"`
	}

	SaveResultsRequest struct {
		Rows []results.ResultRow `json:"rows"`
	}

	SaveResultsResponse struct {
		Outcomes []results.Outcome `json:"outcomes"`
	}
)
