package service_test

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"testing"

	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	"github.com/JSB847123/simple-business-database/pkg/internal/service"
)

// encodeTestJPEG 生成指定尺寸的灰度 JPEG 测试图.
func encodeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y += 16 {
		for x := 0; x < width; x++ {
			img.Pix[y*img.Stride+x] = uint8(x % 256)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}

	return buf.Bytes()
}

// TestPhotoService_Attach 测试照片压缩入库并挂到楼层.
func TestPhotoService_Attach(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewPhotoService(env.ctx)

	if err := svc.Save(env.ctx, makeRecord("rec-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	uploads := []service.PhotoUpload{
		{FileName: "front.jpg", Data: encodeTestJPEG(t, 2000, 1500)},
		{FileName: "door.jpg", Data: encodeTestJPEG(t, 640, 480)},
	}

	resp, err := svc.Attach(env.ctx, "rec-1", "rec-1-f1", uploads)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if resp.Succeeded != 2 || resp.Failed != 0 {
		t.Fatalf("expected 2 succeeded, got %+v", resp)
	}

	rec, err := svc.Get(env.ctx, "rec-1")
	if err != nil || rec == nil {
		t.Fatalf("Get after attach: %v", err)
	}

	photos := rec.Floors[0].Photos
	if len(photos) != 2 {
		t.Fatalf("expected 2 photos on floor, got %d", len(photos))
	}

	if photos[0].ID == "" || photos[0].Size <= 0 {
		t.Errorf("photo metadata incomplete: %+v", photos[0])
	}

	// 二进制已经离开记录本体，存进照片库
	blob, err := env.store.GetPhotoBlob(env.ctx, photos[0].ID)
	if err != nil || len(blob) == 0 {
		t.Errorf("photo blob missing: %v", err)
	}
}

// TestPhotoService_Attach_BadUpload 测试解码失败的文件只计失败不拖垮批次.
func TestPhotoService_Attach_BadUpload(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewPhotoService(env.ctx)

	if err := svc.Save(env.ctx, makeRecord("rec-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	uploads := []service.PhotoUpload{
		{FileName: "broken.jpg", Data: []byte("not an image")},
		{FileName: "ok.jpg", Data: encodeTestJPEG(t, 320, 240)},
	}

	resp, err := svc.Attach(env.ctx, "rec-1", "rec-1-f1", uploads)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if resp.Succeeded != 1 || resp.Failed != 1 {
		t.Fatalf("expected 1 ok 1 failed, got %+v", resp)
	}

	if resp.Results[0].OK || resp.Results[0].Error == "" {
		t.Errorf("broken upload should carry an error: %+v", resp.Results[0])
	}
}

// TestPhotoService_Attach_FloorFull 测试楼层照片数上限.
func TestPhotoService_Attach_FloorFull(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewPhotoService(env.ctx)

	rec := makeRecord("rec-1")
	for i := 0; i < model.MaxPhotosPerFloor; i++ {
		rec.Floors[0].Photos = append(rec.Floors[0].Photos, model.Photo{
			ID:        rec.ID + "-p" + string(rune('a'+i)),
			Timestamp: 1000,
		})
	}

	if err := svc.Save(env.ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	resp, err := svc.Attach(env.ctx, "rec-1", "rec-1-f1", []service.PhotoUpload{
		{FileName: "extra.jpg", Data: encodeTestJPEG(t, 320, 240)},
	})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if resp.Succeeded != 0 || resp.Failed != 1 {
		t.Errorf("full floor must reject the upload, got %+v", resp)
	}
}

// TestPhotoService_Attach_MissingTargets 测试记录与楼层未命中的哨兵错误.
func TestPhotoService_Attach_MissingTargets(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewPhotoService(env.ctx)

	if _, err := svc.Attach(env.ctx, "no-such", "f1", nil); !errors.Is(err, service.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}

	if err := svc.Save(env.ctx, makeRecord("rec-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := svc.Attach(env.ctx, "rec-1", "no-floor", nil); !errors.Is(err, service.ErrFloorNotFound) {
		t.Errorf("expected ErrFloorNotFound, got %v", err)
	}
}

// TestPhotoService_ViewAndDelete 测试查看句柄生成与删除后的撤销.
func TestPhotoService_ViewAndDelete(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewPhotoService(env.ctx)

	if err := svc.Save(env.ctx, makeRecord("rec-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	resp, err := svc.Attach(env.ctx, "rec-1", "rec-1-f1", []service.PhotoUpload{
		{FileName: "view.jpg", Data: encodeTestJPEG(t, 320, 240)},
	})
	if err != nil || resp.Succeeded != 1 {
		t.Fatalf("Attach: %+v %v", resp, err)
	}

	photoID := resp.Results[0].PhotoID

	h, err := svc.View(env.ctx, photoID)
	if err != nil || h == nil {
		t.Fatalf("View: %v", err)
	}

	if _, err := os.Stat(h.Path); err != nil {
		t.Fatalf("handle temp file missing: %v", err)
	}

	if err := svc.DeletePhoto(env.ctx, "rec-1", "rec-1-f1", photoID); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}

	// 引用、二进制、句柄三者都要消失
	rec, err := svc.Get(env.ctx, "rec-1")
	if err != nil || len(rec.Floors[0].Photos) != 0 {
		t.Errorf("photo reference should be gone: %v", err)
	}

	blob, err := env.store.GetPhotoBlob(env.ctx, photoID)
	if err != nil || blob != nil {
		t.Errorf("photo blob should be gone: %v", err)
	}

	if _, err := os.Stat(h.Path); !os.IsNotExist(err) {
		t.Errorf("revoked handle file should be removed: %v", err)
	}
}

// TestPhotoService_DeletePhoto_Missing 测试删除不存在的照片引用.
func TestPhotoService_DeletePhoto_Missing(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewPhotoService(env.ctx)

	if err := svc.Save(env.ctx, makeRecord("rec-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	err := svc.DeletePhoto(env.ctx, "rec-1", "rec-1-f1", "no-photo")
	if !errors.Is(err, service.ErrPhotoNotFound) {
		t.Errorf("expected ErrPhotoNotFound, got %v", err)
	}
}
