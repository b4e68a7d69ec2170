package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// 厂家数据看板接口路径
const (
	taskListPath   = "/data-board/v1/log/clean_task/query_list"
	taskDetailPath = "/data-board/v1/log/clean_task/query"
)

// TimeWindow 同步时间窗口（Unix 时间戳，秒）
type TimeWindow struct {
	Start int64
	End   int64
}

// TaskRef 列表接口返回的轻量任务引用（按它再查详情）
type TaskRef struct {
	SN       string `json:"sn"`
	ReportID string `json:"report_id"`
}

// TaskDetail 详情接口返回的任务报告
type TaskDetail struct {
	Status      int         `json:"status"`
	StartTime   int64       `json:"start_time"`
	EndTime     int64       `json:"end_time"`
	CleanTime   int64       `json:"clean_time"`
	TaskArea    float64     `json:"task_area"`
	CleanArea   float64     `json:"clean_area"`
	Mode        json.Number `json:"mode"`
	CostBattery int64       `json:"cost_battery"`
	CostWater   int64       `json:"cost_water"`
	FloorList   FloorList   `json:"floor_list"`
}

// Floor floor_list 中的一层地图信息
type Floor struct {
	MapName       string `json:"map_name"`
	TaskResultURL string `json:"task_result_url"`
	TaskLocalURL  string `json:"task_local_url"`
}

// FloorList 厂家的 floor_list 字段有两种形态：JSON 数组，或 JSON 编码的字符串
// （字符串里再包一层数组），两种形态解析结果一致
type FloorList []Floor

func (f *FloorList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = nil
		return nil
	}

	// 字符串形态：先解出字符串，再解里面的数组
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = nil
			return nil
		}
		data = []byte(s)
	}

	var floors []Floor
	if err := json.Unmarshal(data, &floors); err != nil {
		return err
	}
	*f = floors
	return nil
}

// MapName 第一层地图名称（无地图时为空串）
func (f FloorList) MapName() string {
	if len(f) == 0 {
		return ""
	}
	return f[0].MapName
}

// MapURL 地图 URL，两级回退：task_result_url -> task_local_url -> ""
func (f FloorList) MapURL() string {
	if len(f) == 0 {
		return ""
	}
	if f[0].TaskResultURL != "" {
		return f[0].TaskResultURL
	}
	return f[0].TaskLocalURL
}

// vendorEnvelope 厂家统一响应包装
type vendorEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// QueryTaskList 查询清洁任务列表（一页）
// 厂家不返回总数，上层靠空页判断翻页结束
func (c *VendorClient) QueryTaskList(ctx context.Context, shopID string, win TimeWindow, offset, limit, tzOffset int) ([]TaskRef, error) {
	params := url.Values{}
	params.Set("start_time", strconv.FormatInt(win.Start, 10))
	params.Set("end_time", strconv.FormatInt(win.End, 10))
	params.Set("shop_id", shopID)
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("timezone_offset", strconv.Itoa(tzOffset))

	body, err := c.getJSON(ctx, taskListPath, params)
	if err != nil {
		return nil, err
	}

	var data struct {
		List []TaskRef `json:"list"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task list: %w", err)
	}

	c.logger.Debug("vendor task list page fetched",
		zap.String("shop_id", shopID),
		zap.Int("offset", offset),
		zap.Int("count", len(data.List)),
	)

	return data.List, nil
}

// QueryTaskDetail 查询单个任务报告详情
func (c *VendorClient) QueryTaskDetail(ctx context.Context, sn, reportID, shopID string, win TimeWindow, tzOffset int) (*TaskDetail, error) {
	params := url.Values{}
	params.Set("sn", sn)
	params.Set("report_id", reportID)
	params.Set("start_time", strconv.FormatInt(win.Start, 10))
	params.Set("end_time", strconv.FormatInt(win.End, 10))
	params.Set("timezone_offset", strconv.Itoa(tzOffset))
	params.Set("shop_id", shopID)

	body, err := c.getJSON(ctx, taskDetailPath, params)
	if err != nil {
		return nil, err
	}

	var detail TaskDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task detail: %w", err)
	}

	return &detail, nil
}

// getJSON 执行 GET 并剥掉厂家响应包装，返回 data 字段
func (c *VendorClient) getJSON(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	rawURL := path + "?" + params.Encode()

	status, body, err := c.Do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("vendor API returned status %d: %s", status, truncate(body, 256))
	}

	var envelope vendorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vendor response: %w", err)
	}
	if envelope.Code != 0 {
		return nil, fmt.Errorf("vendor API error: %s (code: %d)", envelope.Msg, envelope.Code)
	}

	return envelope.Data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
