package http

import (
	"time"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	"github.com/wrale/adsign/internal/adsignd/liveness"
	"github.com/wrale/adsign/internal/adsignd/loop"
)

// toDisplay renders d for its admin, deriving the actual status at now
func toDisplay(d *display.Display, now time.Time) v1alpha1.Display {
	return v1alpha1.Display{
		TypeMeta: v1alpha1.TypeMeta{
			Kind:       "Display",
			APIVersion: v1alpha1.APIVersion,
		},
		DisplayID:     d.DisplayID,
		DisplayName:   d.Name,
		Location:      d.Location,
		AssignedAdmin: d.AssignedAdmin,
		Status:        v1alpha1.DisplayStatus(d.Status),
		ActualStatus:  v1alpha1.DisplayStatus(liveness.Derive(d, now)),
		IsConnected:   d.IsConnected,
		LastSeen:      d.LastSeen,
		Resolution: v1alpha1.Resolution{
			Width:  d.Resolution.Width,
			Height: d.Resolution.Height,
		},
		Configuration: toConfiguration(d.Configuration),
		CurrentLoop:   d.CurrentLoop,
		CurrentAd:     d.CurrentAd,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		Version:       d.Version,
	}
}

func toConfiguration(c display.Configuration) v1alpha1.DisplayConfiguration {
	return v1alpha1.DisplayConfiguration{
		Brightness:  c.Brightness,
		Volume:      c.Volume,
		RefreshRate: c.RefreshRate,
		Orientation: c.Orientation,
	}
}

func fromConfiguration(c *v1alpha1.DisplayConfiguration) *display.Configuration {
	if c == nil {
		return nil
	}
	return &display.Configuration{
		Brightness:  c.Brightness,
		Volume:      c.Volume,
		RefreshRate: c.RefreshRate,
		Orientation: c.Orientation,
	}
}

func fromResolution(r *v1alpha1.Resolution) *display.Resolution {
	if r == nil {
		return nil
	}
	return &display.Resolution{Width: r.Width, Height: r.Height}
}

func toRequest(req *approval.ConnectionRequest) v1alpha1.ConnectionRequest {
	return v1alpha1.ConnectionRequest{
		TypeMeta: v1alpha1.TypeMeta{
			Kind:       "ConnectionRequest",
			APIVersion: v1alpha1.APIVersion,
		},
		ID:              req.ID,
		DisplayID:       req.DisplayID,
		DisplayName:     req.DisplayName,
		Location:        req.Location,
		Status:          v1alpha1.ConnectionRequestStatus(req.Status),
		RequestedAt:     req.RequestedAt,
		RespondedAt:     req.RespondedAt,
		RespondedBy:     req.RespondedBy,
		RejectionReason: req.RejectionReason,
	}
}

func toPlaylist(p *loop.Playlist) v1alpha1.Playlist {
	items := make([]v1alpha1.PlaylistItem, 0, len(p.Ads))
	for _, ad := range p.Ads {
		items = append(items, v1alpha1.PlaylistItem{
			AdID:      ad.ID,
			Title:     ad.Title,
			Duration:  ad.Duration,
			MediaType: v1alpha1.MediaType(ad.MediaType),
			MediaURL:  ad.MediaURL,
			Status:    v1alpha1.AdvertisementStatus(ad.Status),
		})
	}
	return v1alpha1.Playlist{
		LoopID:        p.LoopID,
		RotationType:  v1alpha1.RotationType(p.RotationType),
		TotalDuration: p.TotalDuration,
		Items:         items,
	}
}
