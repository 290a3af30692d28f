package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
)

type courseApi struct {
	svc *course.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *course.Service) {
	api := courseApi{svc: svc}

	g.GET("/categories", api.queryCategories)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, teacherMiddleware)

	// detail endpoints, ownership is checked by the service
	dg := cg.Group("/:courseId")
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)

	dg.GET("/chapters", api.queryChapters)
	dg.POST("/chapters", api.createChapter)
	dg.PUT("/chapters/reorder", api.reorderChapters)
	dg.PATCH("/chapters/:chapterId", api.updateChapter)

	dg.POST("/attachments", api.createAttachment)
	dg.DELETE("/attachments/:attachmentId", api.destroyAttachment)
}

// Handlers

func (api *courseApi) queryCategories(ctx echo.Context) error {
	categories, err := api.svc.ListCategories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	return ctx.JSON(http.StatusOK, categories)
}

func (api *courseApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.ListCourses(ctx.Request().Context(), callerID(ctx), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}

	crs, err := api.svc.CreateCourse(ctx.Request().Context(), callerID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetCourse(ctx.Request().Context(), callerID(ctx), ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}

	crs, err := api.svc.UpdateCourse(ctx.Request().Context(), callerID(ctx), ctx.Param("courseId"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) queryChapters(ctx echo.Context) error {
	chapters, err := api.svc.ListChapters(ctx.Request().Context(), callerID(ctx), ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "querying chapters")
	}
	return ctx.JSON(http.StatusOK, chapters)
}

func (api *courseApi) createChapter(ctx echo.Context) error {
	var data course.NewChapter
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChapter")
	}

	chap, err := api.svc.CreateChapter(ctx.Request().Context(), callerID(ctx), ctx.Param("courseId"), data)
	if err != nil {
		return errors.Wrap(err, "creating chapter")
	}
	return ctx.JSON(http.StatusCreated, chap)
}

func (api *courseApi) updateChapter(ctx echo.Context) error {
	var data course.UpdateChapter
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateChapter")
	}

	chap, err := api.svc.UpdateChapter(
		ctx.Request().Context(),
		callerID(ctx),
		ctx.Param("courseId"),
		ctx.Param("chapterId"),
		data,
	)
	if err != nil {
		return errors.Wrap(err, "updating chapter")
	}
	return ctx.JSON(http.StatusOK, chap)
}

func (api *courseApi) reorderChapters(ctx echo.Context) error {
	var data course.ReorderRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderRequest")
	}

	if err := api.svc.ReorderChapters(ctx.Request().Context(), callerID(ctx), ctx.Param("courseId"), data.List); err != nil {
		return errors.Wrap(err, "reordering chapters")
	}
	return ctx.NoContent(http.StatusOK)
}

func (api *courseApi) createAttachment(ctx echo.Context) error {
	var data course.NewAttachment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttachment")
	}

	att, err := api.svc.CreateAttachment(ctx.Request().Context(), callerID(ctx), ctx.Param("courseId"), data)
	if err != nil {
		return errors.Wrap(err, "creating attachment")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *courseApi) destroyAttachment(ctx echo.Context) error {
	err := api.svc.DeleteAttachment(ctx.Request().Context(), callerID(ctx), ctx.Param("courseId"), ctx.Param("attachmentId"))
	if err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	return ctx.NoContent(http.StatusOK)
}
