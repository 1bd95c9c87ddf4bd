package api

import (
	"net/http"
	"strconv"

	"cabo/internal/models"
	"cabo/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// registerContent mounts public reads under /api/<kind> and admin CRUD
// under /api/admin/<kind>.
func registerContent[T any, PT service.Entry[T]](public, admin *gin.RouterGroup, svc *service.ContentService[T, PT], logger *zerolog.Logger) {
	if svc == nil {
		return
	}
	kind := "/" + svc.Kind()

	public.GET(kind, func(c *gin.Context) {
		page, err := svc.List(c.Request.Context(), contentFilter(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, page)
	})
	public.GET(kind+"/:slug", func(c *gin.Context) {
		item, err := svc.Get(c.Request.Context(), c.Param("slug"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})

	admin.GET(kind, func(c *gin.Context) {
		page, err := svc.AdminList(c.Request.Context(), contentFilter(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, page)
	})
	admin.GET(kind+"/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		item, err := svc.GetByID(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})
	admin.POST(kind, func(c *gin.Context) {
		item := new(T)
		if err := c.ShouldBindJSON(item); err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		if err := svc.Create(c.Request.Context(), item); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	})
	admin.PUT(kind+"/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		item := new(T)
		if err := c.ShouldBindJSON(item); err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		if err := svc.Update(c.Request.Context(), id, item); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})
	admin.DELETE(kind+"/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			respondError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func contentFilter(c *gin.Context) models.ContentFilter {
	return models.ContentFilter{
		Location:    c.Query("location"),
		Search:      c.Query("q"),
		Featured:    c.Query("featured") == "true" || c.Query("featured") == "1",
		MinGuests:   queryInt(c, "guests"),
		MinBedrooms: queryInt(c, "bedrooms"),
		Category:    c.Query("category"),
		Cuisine:     c.Query("cuisine"),
		Limit:       queryInt(c, "limit"),
		Offset:      queryInt(c, "offset"),
	}
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}
