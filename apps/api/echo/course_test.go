package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/tests"
)

var (
	errForbidden = httpErr{Error: "permission denied"}
	errNotFound  = httpErr{Error: "not found"}
)

func Test_courseApi_create(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Student", "student", "student@test.cd", "", []string{user.RoleStudent}, true)

	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "teacher required", method: http.MethodPost, path: "/v1/courses", token: app.getToken(t, student),
			body: []byte(`{"title": "Go 101"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "title required", method: http.MethodPost, path: "/v1/courses", token: app.getToken(t, teacher),
			body: []byte(`{"title": "  "}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title": "this field is required"}`),
		},
	})

	rec := app.do(t, httpTest{method: http.MethodPost, path: "/v1/courses", token: app.getToken(t, teacher), body: []byte(`{"title": "Go 101"}`)})
	require.Equal(t, http.StatusCreated, rec.Code)
	var crs course.Course
	decode(t, rec, &crs)
	assert.Equal(t, "Go 101", crs.Title)
	assert.Equal(t, teacher.ID, crs.OwnerID)
}

func Test_courseApi_update(t *testing.T) {
	app := setup(t)
	owner := testutil.CreateUser(t, app.usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, app.courseRepo, owner.ID, "Go 101")
	path := "/v1/courses/" + crs.ID

	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodPatch, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "not the owner", method: http.MethodPatch, path: path, token: app.getToken(t, other),
			body: []byte(`{"title": "Hacked"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "unknown course", method: http.MethodPatch, path: "/v1/courses/" + uuid.New().String(), token: app.getToken(t, owner),
			body: []byte(`{"title": "x"}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "invalid image url", method: http.MethodPatch, path: path, token: app.getToken(t, owner),
			body: []byte(`{"image_url": "lol"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"image_url": "must be a valid URL"}`),
		},
		{
			name: "nothing to update", method: http.MethodPatch, path: path, token: app.getToken(t, owner),
			body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: course.ErrNothingToUpdate.Error()}),
		},
	})

	stored, err := app.courseRepo.GetCourse(context.Background(), crs.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go 101", stored.Title, "failed requests change nothing")

	rec := app.do(t, httpTest{
		method: http.MethodPatch, path: path, token: app.getToken(t, owner),
		body: []byte(`{"description": "Learn Go", "price": 9.99, "is_published": true}`),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got course.Course
	decode(t, rec, &got)
	assert.Equal(t, "Go 101", got.Title)
	assert.Equal(t, "Learn Go", got.Description)
	require.NotNil(t, got.Price)
	assert.Equal(t, 9.99, *got.Price)
	assert.True(t, got.IsPublished)
}

func Test_courseApi_reorderChapters(t *testing.T) {
	app := setup(t)
	owner := testutil.CreateUser(t, app.usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, app.courseRepo, owner.ID, "Go 101")
	otherCrs := testutil.CreateCourse(t, app.courseRepo, other.ID, "Rust 101")
	c1 := testutil.CreateChapter(t, app.courseRepo, crs.ID, "Intro")
	c2 := testutil.CreateChapter(t, app.courseRepo, crs.ID, "Types")
	foreign := testutil.CreateChapter(t, app.courseRepo, otherCrs.ID, "Intro")

	path := fmt.Sprintf("/v1/courses/%s/chapters/reorder", crs.ID)
	token := app.getToken(t, owner)
	body := func(items ...course.ReorderItem) []byte {
		return marchallObj(t, course.ReorderRequest{List: items})
	}
	chapterIDs := func() []string {
		rec := app.do(t, httpTest{path: fmt.Sprintf("/v1/courses/%s/chapters", crs.ID), token: token})
		require.Equal(t, http.StatusOK, rec.Code)
		var chapters []course.Chapter
		decode(t, rec, &chapters)
		ids := make([]string, 0, len(chapters))
		for _, c := range chapters {
			ids = append(ids, c.ID)
		}
		return ids
	}

	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodPut, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "not the owner", method: http.MethodPut, path: path, token: app.getToken(t, other),
			body: body(course.ReorderItem{ID: c1.ID, Position: 1}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "foreign chapter", method: http.MethodPut, path: path, token: token,
			body:     body(course.ReorderItem{ID: c1.ID, Position: 1}, course.ReorderItem{ID: foreign.ID, Position: 0}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "empty list", method: http.MethodPut, path: path, token: token,
			body: []byte(`{"list": []}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "duplicated position", method: http.MethodPut, path: path, token: token,
			body:     body(course.ReorderItem{ID: c1.ID, Position: 4}, course.ReorderItem{ID: c2.ID, Position: 4}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "malformed body", method: http.MethodPut, path: path, token: token,
			body: []byte(`{"list": "lol"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "position out of range", method: http.MethodPut, path: path, token: token,
			body:     []byte(fmt.Sprintf(`{"list": [{"id": %q, "position": 3000000000}]}`, c1.ID)),
			wantCode: http.StatusBadRequest,
		},
	})
	assert.Equal(t, []string{c1.ID, c2.ID}, chapterIDs(), "failed requests change nothing")

	rec := app.do(t, httpTest{
		method: http.MethodPut, path: path, token: token,
		body: body(course.ReorderItem{ID: c1.ID, Position: 1}, course.ReorderItem{ID: c2.ID, Position: 0}),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{c2.ID, c1.ID}, chapterIDs())
}

func Test_courseApi_chapters(t *testing.T) {
	app := setup(t)
	owner := testutil.CreateUser(t, app.usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, app.courseRepo, owner.ID, "Go 101")
	token := app.getToken(t, owner)

	rec := app.do(t, httpTest{
		method: http.MethodPost, path: fmt.Sprintf("/v1/courses/%s/chapters", crs.ID), token: token,
		body: []byte(`{"title": "Intro"}`),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var chap course.Chapter
	decode(t, rec, &chap)
	assert.Equal(t, 0, chap.Position)

	path := fmt.Sprintf("/v1/courses/%s/chapters/%s", crs.ID, chap.ID)
	app.run(t, []httpTest{
		{
			name: "unknown chapter", method: http.MethodPatch, path: fmt.Sprintf("/v1/courses/%s/chapters/%s", crs.ID, uuid.New().String()),
			token: token, body: []byte(`{"is_free": true}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "not the owner", method: http.MethodPatch, path: path, token: app.getToken(t, other),
			body: []byte(`{"title": "x"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "blank title", method: http.MethodPatch, path: path, token: token,
			body: []byte(`{"title": " "}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title": "this field cannot be blank"}`),
		},
	})

	rec = app.do(t, httpTest{path: fmt.Sprintf("/v1/courses/%s/chapters", crs.ID), token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var chapters []course.Chapter
	decode(t, rec, &chapters)
	require.Len(t, chapters, 1)
	assert.Equal(t, "Intro", chapters[0].Title, "failed requests change nothing")

	rec = app.do(t, httpTest{method: http.MethodPatch, path: path, token: token, body: []byte(`{"is_free": true}`)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &chap)
	assert.True(t, chap.IsFree)
	assert.Equal(t, "Intro", chap.Title)
}

func Test_courseApi_attachments(t *testing.T) {
	app := setup(t)
	owner := testutil.CreateUser(t, app.usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, app.courseRepo, owner.ID, "Go 101")
	token := app.getToken(t, owner)

	rec := app.do(t, httpTest{
		method: http.MethodPost, path: fmt.Sprintf("/v1/courses/%s/attachments", crs.ID), token: token,
		body: []byte(`{"url": "https://files.test.cd/f/1/syllabus.pdf"}`),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var att course.Attachment
	decode(t, rec, &att)
	assert.Equal(t, "syllabus.pdf", att.Name)

	path := fmt.Sprintf("/v1/courses/%s/attachments/%s", crs.ID, att.ID)
	app.run(t, []httpTest{
		{
			name: "not the owner", method: http.MethodDelete, path: path, token: app.getToken(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "delete", method: http.MethodDelete, path: path, token: token, wantCode: http.StatusOK},
		{name: "already deleted", method: http.MethodDelete, path: path, token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
	})

	rec = app.do(t, httpTest{path: "/v1/courses/" + crs.ID, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var got course.Course
	decode(t, rec, &got)
	assert.Empty(t, got.Attachments)
}

func Test_courseApi_query(t *testing.T) {
	app := setup(t)
	owner := testutil.CreateUser(t, app.usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	c1 := testutil.CreateCourse(t, app.courseRepo, owner.ID, "B course")
	c2 := testutil.CreateCourse(t, app.courseRepo, owner.ID, "A course")
	testutil.CreateCourse(t, app.courseRepo, other.ID, "Not mine")

	rec := app.do(t, httpTest{path: "/v1/courses?ordering=title", token: app.getToken(t, owner)})
	require.Equal(t, http.StatusOK, rec.Code)
	var courses []course.Course
	decode(t, rec, &courses)
	require.Len(t, courses, 2)
	assert.Equal(t, c2.ID, courses[0].ID)
	assert.Equal(t, c1.ID, courses[1].ID)

	rec = app.do(t, httpTest{path: "/v1/courses?ordering=-owner_id", token: app.getToken(t, owner)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
