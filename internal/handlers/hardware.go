package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"hw-inventory/internal/models"
	"hw-inventory/internal/services"
)

const historyPageSize = 50

// LIST

func ListHardware(c *gin.Context) {
	filter := services.HardwareFilter{
		Search:    c.Query("search"),
		Statuses:  c.QueryArray("status"),
		Model:     c.Query("model"),
		Center:    c.Query("center"),
		Page:      queryInt(c, "page", 1),
		PerPage:   queryInt(c, "per_page", 20),
		SortBy:    c.DefaultQuery("sort_by", "updated_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	list, err := hardwareSvc.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}

	render(c, http.StatusOK, "hardware_list.html", gin.H{
		"List":     list,
		"Filter":   filter,
		"Statuses": models.HardwareStatuses,
		"Models":   models.HardwareModels,
		"Query":    c.Request.URL.Query(),
	})
}

// DETAIL

func ShowHardware(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	hw, err := hardwareSvc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	history := auditSvc.EntityHistory(c.Request.Context(), hw.EntityName(), hw.PrimaryKey(), queryInt(c, "page", 1), historyPageSize)
	data := gin.H{
		"Hardware": hw,
		"History":  history,
		"Statuses": models.HardwareStatuses,
	}
	if history == nil {
		data["HistoryError"] = "History is currently unavailable."
	}
	render(c, http.StatusOK, "hardware_detail.html", data)
}

// CREATE

func ShowNewHardware(c *gin.Context) {
	renderHardwareForm(c, http.StatusOK, "/hardware/add", services.HardwareInput{
		Model:  string(models.ModelNotebook),
		Status: string(models.StatusInStock),
	}, "")
}

func CreateHardware(c *gin.Context) {
	var in services.HardwareInput
	if err := c.ShouldBind(&in); err != nil {
		renderHardwareForm(c, http.StatusBadRequest, "/hardware/add", in, "Invalid form data")
		return
	}

	hw, err := hardwareSvc.Create(c.Request.Context(), in, actorName(c))
	if err != nil {
		if formError(err) {
			_ = c.Error(err)
			renderHardwareForm(c, http.StatusBadRequest, "/hardware/add", in, err.Error())
			return
		}
		fail(c, err)
		return
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("/hardware/%d", hw.ID))
}

// EDIT

func ShowEditHardware(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	hw, err := hardwareSvc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	renderHardwareForm(c, http.StatusOK, fmt.Sprintf("/hardware/%d/edit", hw.ID), services.InputFromHardware(hw), "")
}

func UpdateHardware(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	action := fmt.Sprintf("/hardware/%d/edit", id)

	var in services.HardwareInput
	if err := c.ShouldBind(&in); err != nil {
		renderHardwareForm(c, http.StatusBadRequest, action, in, "Invalid form data")
		return
	}

	if _, err := hardwareSvc.Update(c.Request.Context(), id, in, actorName(c)); err != nil {
		if formError(err) {
			_ = c.Error(err)
			renderHardwareForm(c, http.StatusBadRequest, action, in, err.Error())
			return
		}
		fail(c, err)
		return
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("/hardware/%d", id))
}

func renderHardwareForm(c *gin.Context, status int, action string, in services.HardwareInput, msg string) {
	render(c, status, "hardware_form.html", gin.H{
		"Action":   action,
		"Input":    in,
		"IsEdit":   action != "/hardware/add",
		"Models":   models.HardwareModels,
		"Statuses": models.HardwareStatuses,
		"error":    msg,
	})
}

func formError(err error) bool {
	return errors.Is(err, services.ErrInvalidInput) || errors.Is(err, services.ErrDuplicateSerial)
}

// DELETE

func DeleteHardware(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := hardwareSvc.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}

	if c.Request.Method == http.MethodDelete || wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"deleted": id})
		return
	}
	c.Redirect(http.StatusFound, "/hardware")
}

// STATUS

func CycleHardwareStatus(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	hw, err := hardwareSvc.CycleStatus(c.Request.Context(), id, actorName(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondStatus(c, hw)
}

func ChangeHardwareStatus(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	status := models.HardwareStatus(c.PostForm("status"))
	hw, err := hardwareSvc.ChangeStatus(c.Request.Context(), id, status, actorName(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondStatus(c, hw)
}

func respondStatus(c *gin.Context, hw *models.Hardware) {
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"id":             hw.ID,
			"status":         hw.Status,
			"status_display": hw.Status.DisplayName(),
		})
		return
	}
	c.Redirect(http.StatusFound, backTo(c, fmt.Sprintf("/hardware/%d", hw.ID)))
}

// backTo returns the local page the request came from, or def.
func backTo(c *gin.Context, def string) string {
	ref, err := url.Parse(c.GetHeader("Referer"))
	if err != nil || ref.Path == "" || ref.Host != c.Request.Host {
		return def
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}

// IMPORT

func ImportHardware(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, fmt.Errorf("%w: %v", services.ErrInvalidInput, err))
		return
	}
	items, err := services.ParseImportPayload(body)
	if err != nil {
		fail(c, err)
		return
	}

	res := hardwareSvc.Import(c.Request.Context(), items, actorName(c))
	c.JSON(http.StatusOK, res)
}
