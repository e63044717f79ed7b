package storage

import (
	"encoding/json"
	"log"

	"vulnbridge/internal/core/domain"
)

// encodeMap serializes a metadata map to JSON text for storage.
func encodeMap(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		log.Printf("[STORAGE] Failed to encode metadata: %v", err)
		return ""
	}
	return string(data)
}

// decodeMap deserializes stored JSON text back to a map.
func decodeMap(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		log.Printf("[STORAGE] Failed to decode metadata: %v", err)
		return nil
	}
	return m
}

func toScanModel(s *domain.Scan) ScanModel {
	return ScanModel{
		ID:          s.ID,
		UserID:      s.UserID,
		FilePath:    s.FilePath,
		Source:      s.Source,
		Status:      s.Status,
		Metadata:    encodeMap(s.Metadata),
		ProcessedAt: s.ProcessedAt,
		CreatedAt:   s.CreatedAt,
	}
}

func toScanDomain(m ScanModel) *domain.Scan {
	return &domain.Scan{
		ID:          m.ID,
		UserID:      m.UserID,
		FilePath:    m.FilePath,
		Source:      m.Source,
		Status:      m.Status,
		Metadata:    decodeMap(m.Metadata),
		ProcessedAt: m.ProcessedAt,
		CreatedAt:   m.CreatedAt,
	}
}

func toAssetModel(a *domain.Asset) AssetModel {
	return AssetModel{
		ID:         a.ID,
		UserID:     a.UserID,
		Identifier: a.Identifier,
		Type:       string(a.Type),
		Metadata:   encodeMap(a.Metadata),
		FirstSeen:  a.FirstSeen,
		LastSeen:   a.LastSeen,
	}
}

func toAssetDomain(m AssetModel) *domain.Asset {
	return &domain.Asset{
		ID:         m.ID,
		UserID:     m.UserID,
		Identifier: m.Identifier,
		Type:       domain.AssetType(m.Type),
		Metadata:   decodeMap(m.Metadata),
		FirstSeen:  m.FirstSeen,
		LastSeen:   m.LastSeen,
	}
}

func toVulnerabilityModel(v *domain.Vulnerability) VulnerabilityModel {
	return VulnerabilityModel{
		ID:          v.ID,
		UserID:      v.UserID,
		ScanID:      v.ScanID,
		AssetID:     v.AssetID,
		PluginID:    v.PluginID,
		CVEID:       v.CVEID,
		Title:       v.Title,
		Description: v.Description,
		Remediation: v.Remediation,
		Severity:    string(v.Severity),
		CVSSScore:   v.CVSSScore,
		CVSSVector:  v.CVSSVector,
		Port:        v.Port,
		Protocol:    v.Protocol,
		Status:      string(v.Status),
		RawData:     encodeMap(v.RawData),
		FirstSeen:   v.FirstSeen,
		LastSeen:    v.LastSeen,
		ClosedAt:    v.ClosedAt,
	}
}

func toVulnerabilityDomain(m VulnerabilityModel) *domain.Vulnerability {
	return &domain.Vulnerability{
		ID:          m.ID,
		UserID:      m.UserID,
		ScanID:      m.ScanID,
		AssetID:     m.AssetID,
		PluginID:    m.PluginID,
		CVEID:       m.CVEID,
		Title:       m.Title,
		Description: m.Description,
		Remediation: m.Remediation,
		Severity:    domain.Severity(m.Severity),
		CVSSScore:   m.CVSSScore,
		CVSSVector:  m.CVSSVector,
		Port:        m.Port,
		Protocol:    m.Protocol,
		Status:      domain.VulnStatus(m.Status),
		RawData:     decodeMap(m.RawData),
		FirstSeen:   m.FirstSeen,
		LastSeen:    m.LastSeen,
		ClosedAt:    m.ClosedAt,
	}
}

func toJobModel(j *domain.Job) JobModel {
	return JobModel{
		ID:           j.ID,
		ScanID:       j.ScanID,
		UserID:       j.UserID,
		Type:         string(j.Type),
		Status:       string(j.Status),
		Progress:     j.Progress,
		ErrorMessage: j.ErrorMessage,
		ResultData:   encodeMap(j.Result),
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}

func toJobDomain(m JobModel) *domain.Job {
	return &domain.Job{
		ID:           m.ID,
		ScanID:       m.ScanID,
		UserID:       m.UserID,
		Type:         domain.JobType(m.Type),
		Status:       domain.JobStatus(m.Status),
		Progress:     m.Progress,
		ErrorMessage: m.ErrorMessage,
		Result:       decodeMap(m.ResultData),
		CreatedAt:    m.CreatedAt,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}
}
